// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intent

import (
	"fmt"
	"strings"
)

// ============================================================================
// INTENT TYPE
// ============================================================================

// Intent is the pipeline a query is dispatched to.
type Intent int

const (
	// Structured queries are answered by translating to SQL over the tabular store.
	Structured Intent = iota
	// Retrieval queries are answered from indexed documents.
	Retrieval
	// Conversational queries go straight to the generation model.
	Conversational
)

// Priority is the single tie-break order used everywhere an intent has to be
// picked from several candidates. Conversational is always last: it is the
// catch-all.
var Priority = []Intent{Structured, Retrieval, Conversational}

// String returns the mode name reported to callers.
func (i Intent) String() string {
	switch i {
	case Structured:
		return "structured"
	case Retrieval:
		return "retrieval"
	case Conversational:
		return "conversational"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// Label returns the token the classifier is asked to answer with.
func (i Intent) Label() string {
	switch i {
	case Structured:
		return "SQL"
	case Retrieval:
		return "RAG"
	default:
		return "CHAT"
	}
}

// Rank returns the position of i in Priority; lower wins.
func (i Intent) Rank() int {
	for n, p := range Priority {
		if p == i {
			return n
		}
	}
	return len(Priority)
}

// Parse converts a mode name or classifier label back into an Intent.
func Parse(s string) (Intent, error) {
	s = strings.TrimSpace(s)
	for _, i := range Priority {
		if strings.EqualFold(s, i.String()) || strings.EqualFold(s, i.Label()) {
			return i, nil
		}
	}
	return Conversational, fmt.Errorf("unknown intent %q", s)
}
