// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"strings"

	"github.com/jeranaias/hybridqa/internal/rag"
	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/text2sql"
)

// ============================================================================
// STRATEGY
// ============================================================================

// Strategy decides what happens to a query the keyword stage cannot place.
type Strategy int

const (
	// StrategyClassify asks the intent classifier once and follows its label.
	StrategyClassify Strategy = iota
	// StrategyRetrieval sends every ambiguous query to the retrieval pipeline
	// without consulting the model.
	StrategyRetrieval
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyClassify:
		return "classify"
	case StrategyRetrieval:
		return "retrieval"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration value. The empty string is the
// default, StrategyClassify.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "classify":
		return StrategyClassify, nil
	case "retrieval", "rag":
		return StrategyRetrieval, nil
	default:
		return StrategyClassify, fmt.Errorf("unknown routing strategy %q (want classify or retrieval)", s)
	}
}

// ============================================================================
// DECISION
// ============================================================================

// Decision records how a query was dispatched.
type Decision struct {
	Intent    intent.Intent
	Hits      intent.Hits
	Escalated bool   // keyword stage was inconclusive
	Reason    string // human-readable explanation for logs and the CLI
}

// ============================================================================
// RESULT
// ============================================================================

// Result is the normalized router output. The concrete type is one of
// *StructuredResult, *RetrievalResult or *ConversationalResult.
type Result interface {
	Mode() intent.Intent
	isResult()
}

// StructuredResult is the output of the text-to-SQL pipeline.
type StructuredResult struct {
	Query    text2sql.GeneratedQuery
	RowCount int
	Rows     []text2sql.Row
	Columns  []string

	// ExecErr is set when execution failed and the rows are empty because of it.
	ExecErr error
}

// RetrievalResult is the output of the retrieval pipeline.
type RetrievalResult struct {
	Answer   string
	Passages []rag.Passage
}

// ConversationalResult is a free-form model answer.
type ConversationalResult struct {
	Answer string
}

func (*StructuredResult) Mode() intent.Intent     { return intent.Structured }
func (*RetrievalResult) Mode() intent.Intent      { return intent.Retrieval }
func (*ConversationalResult) Mode() intent.Intent { return intent.Conversational }

func (*StructuredResult) isResult()     {}
func (*RetrievalResult) isResult()      {}
func (*ConversationalResult) isResult() {}
