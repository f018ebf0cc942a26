// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package text2sql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/logging"
	"github.com/jeranaias/hybridqa/internal/univdb"
)

// Row maps column name to value. Values are int64, float64, string or nil.
type Row map[string]any

// TabularResult is the outcome of running a GeneratedQuery. A failed run
// has no rows and a non-nil Err; it is still a valid, empty result.
type TabularResult struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	Err     error    `json:"-"`
}

// RowCount returns the number of rows returned.
func (r TabularResult) RowCount() int {
	return len(r.Rows)
}

// Failed reports whether execution failed.
func (r TabularResult) Failed() bool {
	return r.Err != nil
}

// Executor runs generated statements against the dataset.
type Executor struct {
	dbPath string
	logger *zap.Logger
}

// NewExecutor creates an Executor for the database at dbPath.
func NewExecutor(dbPath string, logger *zap.Logger) *Executor {
	return &Executor{dbPath: dbPath, logger: logging.OrNop(logger)}
}

// Execute runs q on a connection opened and closed within the call. It
// never returns an error: failures are logged and produce an empty result.
func (e *Executor) Execute(ctx context.Context, q GeneratedQuery) TabularResult {
	res, err := e.run(ctx, q)
	if err != nil {
		e.logger.Warn("SQL execution failed",
			zap.String("sql", string(q)), zap.Error(err))
		return TabularResult{Rows: []Row{}, Err: err}
	}
	e.logger.Debug("SQL executed",
		zap.String("sql", string(q)), zap.Int("rows", res.RowCount()))
	return res
}

func (e *Executor) run(ctx context.Context, q GeneratedQuery) (TabularResult, error) {
	if q == "" {
		return TabularResult{}, fmt.Errorf("empty query")
	}

	db, err := univdb.OpenReadOnly(e.dbPath)
	if err != nil {
		return TabularResult{}, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, string(q))
	if err != nil {
		return TabularResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return TabularResult{}, err
	}

	res := TabularResult{Columns: cols, Rows: []Row{}}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return TabularResult{}, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return TabularResult{}, err
	}
	return res, nil
}
