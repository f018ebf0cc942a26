// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package text2sql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
	"github.com/jeranaias/hybridqa/internal/univdb"
)

// DefaultTopK is the row limit the model is asked to apply when the
// question does not name one.
const DefaultTopK = 5

// DefaultSampleRows is how many example rows accompany each table.
const DefaultSampleRows = 3

const promptTemplate = `You are a SQLite expert. Given an input question, create one syntactically correct SQLite query to run.
Unless the question asks for a specific number of rows, query for at most %d results using the LIMIT clause.
Never query for all columns from a table; select only the columns needed to answer the question.
Use only the column names listed below, and pay attention to which column is in which table.
Text values such as region (지역명: 서울, 부산, 경기 ...) and school_name are stored in Korean.

Use the following format:

Question: Question here
SQLQuery: SQL Query to run
SQLResult: Result of the SQLQuery
Answer: Final answer here

Only use the following tables:
%s

Question: %s
SQLQuery: `

// Translator turns a question into a GeneratedQuery using the live schema.
type Translator struct {
	model      llm.Model
	dbPath     string
	topK       int
	sampleRows int
	logger     *zap.Logger
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithTopK sets the default row limit in the prompt.
func WithTopK(k int) TranslatorOption {
	return func(t *Translator) {
		if k > 0 {
			t.topK = k
		}
	}
}

// WithSampleRows sets how many example rows are shown per table.
func WithSampleRows(n int) TranslatorOption {
	return func(t *Translator) {
		if n >= 0 {
			t.sampleRows = n
		}
	}
}

// NewTranslator creates a Translator for the database at dbPath.
func NewTranslator(model llm.Model, dbPath string, logger *zap.Logger, opts ...TranslatorOption) *Translator {
	t := &Translator{
		model:      model,
		dbPath:     dbPath,
		topK:       DefaultTopK,
		sampleRows: DefaultSampleRows,
		logger:     logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate generates one statement for query. Only model failures are
// returned as errors (wrapping llm.ErrGenerationUnavailable).
func (t *Translator) Translate(ctx context.Context, query string) (GeneratedQuery, error) {
	out, err := t.model.Complete(ctx, t.Prompt(ctx, query))
	if err != nil {
		return "", fmt.Errorf("translate question to SQL: %w", llm.Unavailable(err))
	}

	q := ExtractQuery(out)
	t.logger.Info("generated SQL", zap.String("question", query), zap.String("sql", string(q)))
	return q, nil
}

// Prompt renders the translation prompt, reading the schema with a
// connection scoped to this call. If the database cannot be read the static
// table definition is used instead.
func (t *Translator) Prompt(ctx context.Context, query string) string {
	return fmt.Sprintf(promptTemplate, t.topK, t.tableInfo(ctx), query)
}

func (t *Translator) tableInfo(ctx context.Context) string {
	db, err := univdb.OpenReadOnly(t.dbPath)
	if err == nil {
		defer db.Close()
		var info string
		if info, err = univdb.DescribeSchema(ctx, db, t.sampleRows); err == nil && info != "" {
			return info
		}
	}
	t.logger.Warn("schema unavailable, using static table definition",
		zap.String("db", t.dbPath), zap.Error(err))
	return univdb.Schema
}
