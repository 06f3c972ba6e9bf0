package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id string, vector, score float64, rank int) FusedResult {
	return FusedResult{Chunk: chunk(id), VectorScore: vector, Score: score, OriginalRank: rank}
}

func TestQualityGateByLanguage(t *testing.T) {
	th := DefaultParams().Thresholds
	results := []FusedResult{
		scored("a", 0.55, 0.9, 1),
		scored("b", 0.40, 0.8, 2),
		scored("c", 0.25, 0.7, 3),
	}

	tests := []struct {
		name      string
		lang      Language
		wantIDs   []string
		threshold float64
	}{
		{"french primary", LangFrench, []string{"a"}, 0.50},
		{"arabic primary", LangArabic, []string{"a", "b"}, 0.30},
		{"bilingual uses arabic", LangBilingual, []string{"a", "b"}, 0.30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, threshold, relaxed := ApplyQualityGate(context.Background(), results, tt.lang, th, true)
			assert.False(t, relaxed)
			assert.Equal(t, tt.threshold, threshold)
			ids := make([]string, len(kept))
			for i, r := range kept {
				ids[i] = r.Chunk.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestQualityGateRelaxedOnlyWhenAllowed(t *testing.T) {
	th := DefaultParams().Thresholds
	results := []FusedResult{scored("a", 0.40, 0.9, 1), scored("b", 0.30, 0.8, 2)}

	kept, _, relaxed := ApplyQualityGate(context.Background(), results, LangFrench, th, false)
	assert.Empty(t, kept)
	assert.False(t, relaxed)

	kept, threshold, relaxed := ApplyQualityGate(context.Background(), results, LangFrench, th, true)
	assert.True(t, relaxed)
	assert.Equal(t, 0.35, threshold)
	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].Chunk.ID)
}

func TestDemoteAbrogatedHalvesExactly(t *testing.T) {
	markers := DefaultAbrogationMarkers()
	repealed := scored("old", 0.6, 0.8, 1)
	repealed.Chunk.Text = "الفصل 12 ملغى بمقتضى القانون عدد 5"
	current := scored("new", 0.6, 0.5, 2)

	out, flags := DemoteAbrogated(context.Background(), []FusedResult{repealed, current}, markers)

	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].Chunk.ID)
	old := out[1]
	assert.True(t, old.Abrogated)
	assert.Equal(t, 0.8, old.PreAbrogationScore)
	assert.Equal(t, old.PreAbrogationScore*0.5, old.Score)
	assert.Equal(t, "ملغى", old.AbrogationMarker)
	require.Len(t, flags, 1)
	assert.Equal(t, "old", flags[0].ChunkID)
	assert.Equal(t, 0.5, flags[0].Factor)
}

func TestDemoteAbrogatedAppliesOnce(t *testing.T) {
	r := scored("x", 0.6, 0.4, 1)
	r.Chunk.Text = "Article abrogé et remplacé par la loi n° 2019-47."

	out, flags := DemoteAbrogated(context.Background(), []FusedResult{r}, DefaultAbrogationMarkers())

	assert.Equal(t, 0.2, out[0].Score)
	assert.Len(t, flags, 1)
}

func TestDemoteAbrogatedNeverDrops(t *testing.T) {
	results := make([]FusedResult, 3)
	for i := range results {
		results[i] = scored(string(rune('a'+i)), 0.6, 0.5, i+1)
		results[i].Chunk.Text = "texte abrogé"
	}
	out, flags := DemoteAbrogated(context.Background(), results, DefaultAbrogationMarkers())
	assert.Len(t, out, 3)
	assert.Len(t, flags, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Chunk.ID, out[1].Chunk.ID, out[2].Chunk.ID})
}

func TestDemoteAbrogatedArabicMarkers(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		repealed bool
	}{
		{"bare adjective", "الفصل 12 ملغى بمقتضى القانون عدد 5", true},
		{"passive verb", "أُلغي هذا الفصل بالقانون عدد 96 لسنة 2005", true},
		{"fully vocalised", "أُلْغِيَ الفصل 7", true},
		{"between brackets", "الفصل 5 (ألغي بمقتضى القانون)", true},
		{"definite plural", "تبقى الأحكام الملغاة خاضعة للقانون القديم", true},
		{"abrogated", "الفصل 3 منسوخ", true},
		{"third parties", "يبقى العقد نافذا مع احترام حقوق الغير محفوظة", false},
		{"third parties at start", "الغير حسن النية لا يعارض بالبطلان", false},
		{"copy of the contract", "تسلم نُسخة من العقد إلى كل طرف", false},
		{"cancellation noun", "إلغاء العقد يكون بالتراضي", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := scored("x", 0.6, 0.8, 1)
			r.Chunk.Text = tt.text

			out, flags := DemoteAbrogated(context.Background(), []FusedResult{r}, DefaultAbrogationMarkers())

			require.Len(t, out, 1)
			assert.Equal(t, tt.repealed, out[0].Abrogated)
			if tt.repealed {
				assert.Len(t, flags, 1)
				assert.Equal(t, 0.4, out[0].Score)
				return
			}
			assert.Empty(t, flags)
			assert.Equal(t, 0.8, out[0].Score)
			assert.Empty(t, out[0].AbrogationMarker)
		})
	}
}
