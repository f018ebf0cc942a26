// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
)

const (
	// InsufficientGrounding is the reserved answer for questions the
	// passages do not cover.
	InsufficientGrounding = "문서에 근거가 없습니다"

	// NoAnswer is returned when the model replies with nothing at all.
	NoAnswer = "답변을 생성하지 못했습니다."
)

const groundedTemplate = `당신은 한국어로만 답변하는 AI 어시스턴트입니다.
아래 문서 내용을 근거로, 질문에 정확하고 간결하게 답변하세요.
근거가 불충분하면 "` + InsufficientGrounding + `"라고 말하세요.
불필요한 영어를 사용하지 마세요.

[문서]
%s

[질문]
%s`

// Synthesizer produces answers constrained to supplied passages.
type Synthesizer struct {
	model  llm.Model
	logger *zap.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(model llm.Model, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{model: model, logger: logging.OrNop(logger)}
}

// Prompt renders the grounded prompt for query over passages.
func Prompt(query string, passages []Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return fmt.Sprintf(groundedTemplate, strings.Join(parts, "\n\n"), query)
}

// Synthesize answers query from passages. With no passages the model is
// not consulted and InsufficientGrounding is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, passages []Passage) (string, error) {
	if len(passages) == 0 {
		return InsufficientGrounding, nil
	}

	out, err := s.model.Complete(ctx, Prompt(query, passages))
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", llm.Unavailable(err))
	}

	answer := strings.TrimSpace(out)
	if answer == "" {
		s.logger.Warn("model returned an empty answer", zap.String("query", query))
		return NoAnswer, nil
	}
	return answer, nil
}

// IsInsufficient reports whether answer declines for lack of evidence.
func IsInsufficient(answer string) bool {
	return strings.Contains(answer, InsufficientGrounding)
}
