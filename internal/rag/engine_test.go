package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"legal-rag/internal/rag"
	"legal-rag/internal/rag/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const frenchQuestion = "Quelles sont les conditions de la légitime défense en droit pénal tunisien ?"

var (
	defenseChunk = rag.Chunk{
		ID:         "c1",
		DocumentID: "code-penal",
		Title:      "Code pénal",
		Category:   "codes",
		Text:       "N'est pas punissable celui qui commet un acte commandé par la nécessité actuelle de la légitime défense de soi-même.",
		Articles:   []string{"39"},
	}
	repealedChunk = rag.Chunk{
		ID:         "c2",
		DocumentID: "ancien-code",
		Title:      "Ancien texte",
		Category:   "jurisprudence",
		Text:       "Article 40 abrogé : la légitime défense des biens était admise.",
	}
)

func newEmbedder(ctrl *gomock.Controller, p rag.Provider, vec []float32, err error) *mocks.MockEmbedder {
	m := mocks.NewMockEmbedder(ctrl)
	m.EXPECT().Provider().Return(p).AnyTimes()
	m.EXPECT().Embed(gomock.Any(), gomock.Any()).Return(vec, err).Times(1)
	return m
}

func TestRetrieveSurvivesTwoFailedProviders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedders := []rag.Embedder{
		newEmbedder(ctrl, rag.ProviderOpenAI, nil, errors.New("quota exceeded")),
		newEmbedder(ctrl, rag.ProviderOllama, nil, errors.New("connection refused")),
		newEmbedder(ctrl, rag.ProviderBGE, []float32{0.1, 0.2, 0.3}, nil),
	}

	store := mocks.NewMockChunkStore(ctrl)
	store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req rag.SearchRequest) ([]rag.ScoredChunk, error) {
			assert.Equal(t, rag.ProviderBGE, req.Provider)
			if req.Category == "codes" {
				return []rag.ScoredChunk{{Chunk: defenseChunk, Score: 0.8, VectorScore: 0.72}}, nil
			}
			return []rag.ScoredChunk{
				{Chunk: defenseChunk, Score: 0.8, VectorScore: 0.72},
				{Chunk: repealedChunk, Score: 0.7, VectorScore: 0.61},
			}, nil
		}).Times(2)

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{Embedders: embedders, Store: store})
	require.NoError(t, err)

	rc, err := engine.Retrieve(context.Background(), frenchQuestion, rag.Options{})

	require.NoError(t, err)
	require.Len(t, rc.Results, 2)
	assert.Equal(t, rag.LangFrench, rc.Query.Language)
	assert.Equal(t, 0.50, rc.Threshold)
	assert.Equal(t, "c1", rc.Results[0].Chunk.ID)
	assert.True(t, rc.Results[0].Forced)
	assert.Equal(t, 2, rc.Stats.Searches)
	assert.Len(t, rc.Providers, 3)

	repealed := rc.Results[1]
	assert.True(t, repealed.Abrogated)
	assert.Equal(t, repealed.PreAbrogationScore*0.5, repealed.Score)
	require.Len(t, rc.Abrogations, 1)
	assert.Equal(t, "c2", rc.Abrogations[0].ChunkID)
	for _, r := range rc.Results {
		assert.GreaterOrEqual(t, r.VectorScore, rc.Threshold)
		assert.GreaterOrEqual(t, r.Score, 0.0)
	}
}

func TestRetrieveAllEmbeddersFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedders := []rag.Embedder{
		newEmbedder(ctrl, rag.ProviderOpenAI, nil, errors.New("down")),
		newEmbedder(ctrl, rag.ProviderBGE, nil, errors.New("down")),
	}
	store := mocks.NewMockChunkStore(ctrl)

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{Embedders: embedders, Store: store})
	require.NoError(t, err)

	rc, err := engine.Retrieve(context.Background(), frenchQuestion, rag.Options{})

	require.Error(t, err)
	assert.Equal(t, rag.CodeEmbeddingUnavailable, rag.CodeOf(err))
	assert.Len(t, rc.Providers, 2)
}

func TestRetrieveAllSearchesFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockChunkStore(ctrl)
	store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused")).AnyTimes()

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{
		Embedders: []rag.Embedder{newEmbedder(ctrl, rag.ProviderOpenAI, []float32{1}, nil)},
		Store:     store,
	})
	require.NoError(t, err)

	rc, err := engine.Retrieve(context.Background(), frenchQuestion, rag.Options{})

	require.Error(t, err)
	assert.NotErrorIs(t, err, rag.ErrQualityGateEmpty)
	assert.ErrorIs(t, err, rag.ErrAllProvidersUnavailable)
	assert.Equal(t, rag.CodeAllProvidersUnavailable, rag.CodeOf(err))
	var pe *rag.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.HTTPStatus())
	assert.Equal(t, rc.Stats.Searches, rc.Stats.FailedSearch)
	assert.Empty(t, rc.Results)
}

func TestRetrieveQualityGateEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockChunkStore(ctrl)
	store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any()).
		Return([]rag.ScoredChunk{{Chunk: defenseChunk, Score: 0.4, VectorScore: 0.4}}, nil).Times(2)

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{
		Embedders: []rag.Embedder{newEmbedder(ctrl, rag.ProviderOpenAI, []float32{1}, nil)},
		Store:     store,
	})
	require.NoError(t, err)

	_, err = engine.Retrieve(context.Background(), frenchQuestion, rag.Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrQualityGateEmpty)
	var pe *rag.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 200, pe.HTTPStatus())
}

func TestRetrieveRelaxedGate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockChunkStore(ctrl)
	store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any()).
		Return([]rag.ScoredChunk{{Chunk: defenseChunk, Score: 0.4, VectorScore: 0.4}}, nil).Times(2)

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{
		Embedders: []rag.Embedder{newEmbedder(ctrl, rag.ProviderOpenAI, []float32{1}, nil)},
		Store:     store,
	})
	require.NoError(t, err)

	rc, err := engine.Retrieve(context.Background(), frenchQuestion, rag.Options{AllowRelaxed: true})

	require.NoError(t, err)
	assert.True(t, rc.Relaxed)
	assert.Equal(t, 0.35, rc.Threshold)
	assert.Len(t, rc.Results, 1)
}

func TestGenerateGroundedAnswerEnforcesCitation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Name().Return("openai").AnyTimes()
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req rag.GenerateRequest) (string, error) {
			assert.Contains(t, req.Prompt, "[Source-1] Code pénal (art. 39) [codes]")
			assert.Contains(t, req.Prompt, "Question: "+frenchQuestion)
			assert.Equal(t, rag.DefaultSystemPrompt, req.System)
			return "La légitime défense suppose une agression actuelle. Voir aussi [Source-7].", nil
		})

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{Store: mocks.NewMockChunkStore(ctrl), Generators: []rag.Generator{gen}})
	require.NoError(t, err)

	rc := rag.RankedContext{
		Query: rag.Query{Original: frenchQuestion, Language: rag.LangFrench},
		Results: []rag.FusedResult{
			{Chunk: defenseChunk, Score: 0.9, VectorScore: 0.7, OriginalRank: 1},
			{Chunk: repealedChunk, Score: 0.3, PreAbrogationScore: 0.6, Abrogated: true, AbrogationMarker: "abrogé", VectorScore: 0.6, OriginalRank: 2},
		},
		Abrogations: []rag.AbrogationFlag{{ChunkID: "c2", Marker: "abrogé", Severity: "high", Factor: 0.5}},
	}

	answer, err := engine.GenerateGroundedAnswer(context.Background(), frenchQuestion, rc, rag.Options{})

	require.NoError(t, err)
	assert.Equal(t, "openai", answer.Provider)
	assert.True(t, strings.HasPrefix(answer.Answer, `[Source-1] "N'est pas punissable`))
	assert.Equal(t, "missing_citation_first", answer.CitationIssue)
	assert.Equal(t, "valid", answer.FinalIssue)
	assert.True(t, answer.Enforced)

	require.Len(t, answer.Citations, 2)
	assert.True(t, answer.Citations[0].Verified)
	assert.Equal(t, "c1", answer.Citations[0].ChunkID)
	assert.False(t, answer.Citations[1].Verified)
	assert.Equal(t, []rag.CitationWarning{{Label: "[Source-7]", Reason: "source not in context"}}, answer.CitationWarnings)

	require.Len(t, answer.AbrogationWarnings, 1)
	assert.Equal(t, "[Source-2] Ancien texte", answer.AbrogationWarnings[0].Reference)
	assert.Contains(t, answer.AbrogationWarnings[0].Message.FR, "abrogé")
	assert.NotEmpty(t, answer.AbrogationWarnings[0].Message.AR)
	assert.Len(t, answer.Sources, 2)
}

func TestGenerateGroundedAnswerAllProvidersFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Name().Return("openai").AnyTimes()
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("server error"))

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{Store: mocks.NewMockChunkStore(ctrl), Generators: []rag.Generator{gen}})
	require.NoError(t, err)

	rc := rag.RankedContext{Results: []rag.FusedResult{{Chunk: defenseChunk, Score: 0.9, VectorScore: 0.7}}}
	answer, err := engine.GenerateGroundedAnswer(context.Background(), frenchQuestion, rc, rag.Options{})

	require.Error(t, err)
	assert.Equal(t, rag.CodeAllProvidersUnavailable, rag.CodeOf(err))
	assert.Empty(t, answer.Answer)
	assert.Empty(t, answer.Citations)
	assert.Len(t, answer.Attempts, 1)
}

func TestGenerateGroundedAnswerEmptyContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine, err := rag.NewEngine(rag.DefaultParams(), rag.Deps{Store: mocks.NewMockChunkStore(ctrl)})
	require.NoError(t, err)

	_, err = engine.GenerateGroundedAnswer(context.Background(), frenchQuestion, rag.RankedContext{}, rag.Options{})
	assert.Equal(t, rag.CodeQualityGateEmpty, rag.CodeOf(err))
}

func TestNewEngineValidatesParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := rag.DefaultParams()
	p.RRFK = 0
	_, err := rag.NewEngine(p, rag.Deps{Store: mocks.NewMockChunkStore(ctrl)})
	assert.Error(t, err)

	_, err = rag.NewEngine(rag.DefaultParams(), rag.Deps{})
	assert.Error(t, err)
}
