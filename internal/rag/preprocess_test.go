package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeReformulator struct {
	out   string
	err   error
	calls int
}

func (f *fakeReformulator) Reformulate(_ context.Context, _ string, _ Language) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Language
	}{
		{name: "arabic", text: "شروط الدفاع الشرعي", want: LangArabic},
		{name: "french", text: "Quelles sont les conditions de la légitime défense", want: LangFrench},
		{name: "mixed", text: "شروط الدفاع الشرعي légitime défense", want: LangBilingual},
		{name: "digits only", text: "123", want: LangFrench},
		{name: "arabic with article number", text: "الفصل 39 من المجلة الجزائية", want: LangArabic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestClassify(t *testing.T) {
	rules := DefaultClassifierRules()
	tests := []struct {
		name string
		text string
		want QueryClass
	}{
		{name: "article reference", text: "article 39", want: ClassKeyword},
		{name: "arabic article reference", text: "الفصل 39 من المجلة الجزائية", want: ClassKeyword},
		{name: "short term query", text: "chèque sans provision", want: ClassKeyword},
		{name: "french question", text: "Quelles sont les conditions de la légitime défense ?", want: ClassSemantic},
		{name: "arabic question", text: "ما هي شروط الدفاع الشرعي في القانون التونسي", want: ClassSemantic},
		{name: "article inside a question ties to semantic", text: "que prévoit l'article 12 en matière de bail ?", want: ClassSemantic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, rules))
		})
	}
}

func TestPreprocess(t *testing.T) {
	p := DefaultParams()
	ctx := context.Background()

	t.Run("short query is expanded for the semantic path only", func(t *testing.T) {
		r := &fakeReformulator{out: "Quelles sont les sanctions pénales applicables à l'émission d'un chèque sans provision ?"}
		q := Preprocess(ctx, "  chèque sans provision ", p, r)

		assert.Equal(t, 1, r.calls)
		assert.Equal(t, "chèque sans provision", q.Original)
		assert.Equal(t, r.out, q.Expanded)
		assert.Equal(t, r.out, q.SemanticText())
		assert.Equal(t, ClassKeyword, q.Class)
		assert.False(t, q.Degraded)
	})

	t.Run("expansion failure is degraded, not fatal", func(t *testing.T) {
		r := &fakeReformulator{err: errors.New("boom")}
		q := Preprocess(ctx, "شيك بدون رصيد", p, r)

		assert.True(t, q.Degraded)
		assert.Empty(t, q.Expanded)
		assert.Equal(t, "شيك بدون رصيد", q.SemanticText())
		assert.Equal(t, LangArabic, q.Language)
	})

	t.Run("long query is not expanded", func(t *testing.T) {
		r := &fakeReformulator{out: "unused"}
		long := strings.Repeat("conditions de la responsabilité civile ", 3)
		q := Preprocess(ctx, long, p, r)

		assert.Equal(t, 0, r.calls)
		assert.Empty(t, q.Expanded)
	})

	t.Run("no reformulator configured", func(t *testing.T) {
		q := Preprocess(ctx, "faillite", p, nil)
		assert.Empty(t, q.Expanded)
		assert.False(t, q.Degraded)
	})
}
