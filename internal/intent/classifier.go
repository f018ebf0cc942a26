// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
)

// ============================================================================
// LABEL PARSING
// ============================================================================

// ParseLabel interprets free-form classifier output.
//
// Each label in Priority order is searched for case-insensitively anywhere
// in the output; the first one found wins. Output naming no label (or only
// the conversational label) resolves to Conversational.
func ParseLabel(output string) Intent {
	upper := strings.ToUpper(output)
	for _, in := range Priority {
		if in == Conversational {
			break
		}
		if strings.Contains(upper, in.Label()) {
			return in
		}
	}
	return Conversational
}

// ============================================================================
// CLASSIFIER
// ============================================================================

const classifyTemplate = `다음 사용자 질문의 의도를 분류하세요.
- %s: 대학 통계 데이터베이스(취업률, 등록금, 정원, 장학금액 등 수치)를 조회해야 하는 질문
- %s: 장학금·입학·학사 규정 등 문서 내용을 근거로 설명해야 하는 질문
- %s: 인사나 잡담처럼 위 두 경우에 해당하지 않는 질문
반드시 %s 중 하나의 단어만 출력하세요.

질문: %s
분류:`

// Classifier labels queries the keyword stage could not decide.
type Classifier struct {
	model  llm.Model
	logger *zap.Logger
}

// NewClassifier creates a Classifier. A nil logger disables logging.
func NewClassifier(model llm.Model, logger *zap.Logger) *Classifier {
	return &Classifier{model: model, logger: logging.OrNop(logger)}
}

// Prompt renders the classification prompt for query.
func Prompt(query string) string {
	labels := make([]string, len(Priority))
	for i, in := range Priority {
		labels[i] = in.Label()
	}
	return fmt.Sprintf(classifyTemplate,
		Structured.Label(), Retrieval.Label(), Conversational.Label(),
		strings.Join(labels, ", "), query)
}

// Classify asks the model for a label. It never fails: a backend error or
// unrecognizable output resolves to Conversational.
func (c *Classifier) Classify(ctx context.Context, query string) Intent {
	out, err := c.model.Complete(ctx, Prompt(query))
	if err != nil {
		c.logger.Warn("intent classifier unavailable, defaulting to conversational",
			zap.String("query", query), zap.Error(err))
		return Conversational
	}

	in := ParseLabel(out)
	c.logger.Debug("intent classified",
		zap.String("query", query),
		zap.String("raw", out),
		zap.Stringer("intent", in))
	return in
}
