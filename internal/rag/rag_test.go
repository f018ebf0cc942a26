// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rag_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/index/indextest"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/llm/llmtest"
	"github.com/jeranaias/hybridqa/internal/rag"
)

func newIndex(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "vector")
	indextest.Build(t, dir, &llmtest.Embedder{}, indextest.Policies)
	return dir
}

func ids(ps []rag.Passage) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

// =============================================================================
// RETRIEVER
// =============================================================================

func TestRetriever_Retrieve(t *testing.T) {
	r := rag.NewRetriever(newIndex(t), &llmtest.Embedder{}, nil)

	got, err := r.Retrieve(context.Background(), "국가장학금 신청 절차가 뭐야?", 0)
	require.NoError(t, err)
	require.Len(t, got, rag.DefaultK)
	assert.Equal(t, "국가장학금.md", got[0].Source)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score, "results must be ranked")
	}
}

func TestRetriever_Idempotent(t *testing.T) {
	r := rag.NewRetriever(newIndex(t), &llmtest.Embedder{}, nil)
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "기숙사 신청 서류", 2)
	require.NoError(t, err)
	second, err := r.Retrieve(ctx, "기숙사 신청 서류", 2)
	require.NoError(t, err)

	assert.Equal(t, ids(first), ids(second))
}

func TestRetriever_IndexUnavailable(t *testing.T) {
	r := rag.NewRetriever(filepath.Join(t.TempDir(), "missing"), &llmtest.Embedder{}, nil)

	_, err := r.Retrieve(context.Background(), "국가장학금 신청 절차", 3)
	assert.ErrorIs(t, err, index.ErrIndexUnavailable)
}

func TestRetriever_EmbedderDown(t *testing.T) {
	r := rag.NewRetriever(newIndex(t), &llmtest.Embedder{Err: errors.New("down")}, nil)

	_, err := r.Retrieve(context.Background(), "q", 3)
	assert.ErrorIs(t, err, llm.ErrGenerationUnavailable)
}

func TestRetriever_WithDefaultK(t *testing.T) {
	r := rag.NewRetriever(newIndex(t), &llmtest.Embedder{}, nil, rag.WithDefaultK(1), rag.WithEmbedModel("other"))

	got, err := r.Retrieve(context.Background(), "등록금 분할 납부", -1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// =============================================================================
// SYNTHESIZER
// =============================================================================

func TestSynthesizer_EmptyPassages(t *testing.T) {
	model := &llmtest.Model{Reply: "지어낸 답변"}
	s := rag.NewSynthesizer(model, nil)

	got, err := s.Synthesize(context.Background(), "질문", nil)
	require.NoError(t, err)
	assert.Equal(t, rag.InsufficientGrounding, got)
	assert.Equal(t, 0, model.Calls(), "model must not be consulted without evidence")
}

func TestSynthesizer_Prompt(t *testing.T) {
	model := &llmtest.Model{Reply: "  한국장학재단 홈페이지에서 신청합니다.\n"}
	s := rag.NewSynthesizer(model, nil)

	passages := []rag.Passage{
		{Passage: index.Passage{Content: "첫 번째 문단"}},
		{Passage: index.Passage{Content: "두 번째 문단"}},
	}
	got, err := s.Synthesize(context.Background(), "어떻게 신청해?", passages)
	require.NoError(t, err)
	assert.Equal(t, "한국장학재단 홈페이지에서 신청합니다.", got)

	prompt := model.LastPrompt()
	assert.Contains(t, prompt, "첫 번째 문단\n\n두 번째 문단")
	assert.Contains(t, prompt, rag.InsufficientGrounding)
	assert.Contains(t, prompt, "한국어로만")
	assert.True(t, strings.HasSuffix(prompt, "[질문]\n어떻게 신청해?"))
}

func TestSynthesizer_EmptyModelOutput(t *testing.T) {
	s := rag.NewSynthesizer(&llmtest.Model{Reply: "   "}, nil)

	got, err := s.Synthesize(context.Background(), "q", []rag.Passage{{Passage: index.Passage{Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, rag.NoAnswer, got)
}

func TestSynthesizer_GenerationUnavailable(t *testing.T) {
	s := rag.NewSynthesizer(&llmtest.Model{Err: errors.New("down")}, nil)

	_, err := s.Synthesize(context.Background(), "q", []rag.Passage{{Passage: index.Passage{Content: "x"}}})
	assert.ErrorIs(t, err, llm.ErrGenerationUnavailable)
}

func TestIsInsufficient(t *testing.T) {
	assert.True(t, rag.IsInsufficient("죄송하지만 문서에 근거가 없습니다."))
	assert.False(t, rag.IsInsufficient("신청 기간은 3월입니다."))
}

// =============================================================================
// PIPELINE
// =============================================================================

func TestPipeline_NationalScholarshipProcedure(t *testing.T) {
	model := &llmtest.Model{Reply: "한국장학재단 홈페이지에서 학기별 신청 기간에 온라인으로 신청합니다."}
	p := rag.NewPipeline(
		rag.NewRetriever(newIndex(t), &llmtest.Embedder{}, nil),
		rag.NewSynthesizer(model, nil),
	)

	ans, err := p.Answer(context.Background(), "국가장학금 신청 절차가 뭐야?", 3)
	require.NoError(t, err)
	assert.Len(t, ans.Passages, 3)
	assert.False(t, rag.IsInsufficient(ans.Text))
	assert.Contains(t, model.LastPrompt(), ans.Passages[0].Content)
}

func TestPipeline_MissingIndexSkipsModel(t *testing.T) {
	model := &llmtest.Model{Reply: "x"}
	p := rag.NewPipeline(
		rag.NewRetriever(t.TempDir(), &llmtest.Embedder{}, nil),
		rag.NewSynthesizer(model, nil),
	)

	_, err := p.Answer(context.Background(), "q", 3)
	assert.ErrorIs(t, err, index.ErrIndexUnavailable)
	assert.Equal(t, 0, model.Calls())
}
