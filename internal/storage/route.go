// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"
	"time"

	"github.com/jeranaias/hybridqa/internal/router"
)

// FromRoute builds the entry for one routed query. res may be nil when err
// is set. Retrieval entries store the passage count in RowCount.
func FromRoute(query string, res router.Result, d router.Decision, err error, took time.Duration) *Entry {
	e := &Entry{
		Query:     strings.TrimSpace(query),
		Mode:      d.Intent.String(),
		Escalated: d.Escalated,
		Duration:  took,
	}
	if err != nil {
		e.Error = err.Error()
	}

	switch v := res.(type) {
	case *router.StructuredResult:
		e.SQL = string(v.Query)
		e.RowCount = v.RowCount
		if v.ExecErr != nil {
			e.Error = v.ExecErr.Error()
		}
	case *router.RetrievalResult:
		e.Answer = v.Answer
		e.RowCount = len(v.Passages)
	case *router.ConversationalResult:
		e.Answer = v.Answer
	}
	return e
}
