// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
	"github.com/jeranaias/hybridqa/internal/rag"
	"github.com/jeranaias/hybridqa/internal/text2sql"
	"github.com/jeranaias/hybridqa/internal/util"
)

// MaxQueryLength is the maximum allowed query length in bytes (100KB).
const MaxQueryLength = 100000

var (
	// ErrEmptyQuery is returned for a query that is blank after trimming.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryTooLong is returned when a query exceeds MaxQueryLength.
	ErrQueryTooLong = fmt.Errorf("query exceeds maximum length of %d bytes", MaxQueryLength)
)

// logQueryRunes bounds the query text attached to log records.
const logQueryRunes = 120

// ============================================================================
// PIPELINE CONTRACTS
// ============================================================================

// StructuredPipeline translates a question into SQL and runs it.
type StructuredPipeline interface {
	Run(ctx context.Context, query string) (text2sql.GeneratedQuery, text2sql.TabularResult, error)
}

// RetrievalPipeline answers a question from the k most similar passages.
type RetrievalPipeline interface {
	Answer(ctx context.Context, query string, k int) (*rag.Answer, error)
}

// IntentClassifier labels queries the keyword stage could not place.
// It must not fail; unusable output is Conversational.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) intent.Intent
}

// Deps are the collaborators a Router dispatches to.
type Deps struct {
	Keywords   *intent.Keywords
	Structured StructuredPipeline
	Retrieval  RetrievalPipeline
	Classifier IntentClassifier

	// Model answers conversational queries with an unconstrained completion.
	Model llm.Model
}

// ============================================================================
// ROUTER
// ============================================================================

// Router dispatches queries. It holds no per-request state and is safe for
// concurrent use.
type Router struct {
	deps     Deps
	strategy Strategy
	k        int
	logger   *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithStrategy sets how ambiguous queries are handled.
func WithStrategy(s Strategy) Option {
	return func(r *Router) { r.strategy = s }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = logging.OrNop(l) }
}

// WithK sets the number of passages requested from the retrieval pipeline.
// Zero leaves the choice to the pipeline.
func WithK(k int) Option {
	return func(r *Router) { r.k = k }
}

// New creates a Router. Deps.Keywords defaults to intent.DefaultKeywords.
func New(deps Deps, opts ...Option) *Router {
	if deps.Keywords == nil {
		deps.Keywords = intent.DefaultKeywords()
	}
	r := &Router{deps: deps, strategy: StrategyClassify, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Strategy returns the configured ambiguity strategy.
func (r *Router) Strategy() Strategy {
	return r.strategy
}

// validateQuery trims query and rejects blank or oversized input.
func validateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", ErrEmptyQuery
	}
	if len(q) > MaxQueryLength {
		return "", fmt.Errorf("%w: %d bytes", ErrQueryTooLong, len(q))
	}
	return q, nil
}

// Decide picks the intent for query without running any pipeline. The
// classifier is consulted at most once, and only when the keyword stage is
// inconclusive under StrategyClassify.
func (r *Router) Decide(ctx context.Context, query string) (Decision, error) {
	q, err := validateQuery(query)
	if err != nil {
		return Decision{}, err
	}
	return r.decide(ctx, q), nil
}

func (r *Router) decide(ctx context.Context, q string) Decision {
	hits := r.deps.Keywords.Scan(q)
	if in, ok := hits.Decide(); ok {
		kw := hits.SQLKeyword
		if in == intent.Retrieval {
			kw = hits.RAGKeyword
		}
		return Decision{
			Intent: in,
			Hits:   hits,
			Reason: fmt.Sprintf("keyword %q -> %s", kw, in),
		}
	}

	why := "no keyword matched"
	if hits.SQL && hits.RAG {
		why = fmt.Sprintf("keywords %q and %q both matched", hits.SQLKeyword, hits.RAGKeyword)
	}

	if r.strategy == StrategyRetrieval || r.deps.Classifier == nil {
		return Decision{
			Intent:    intent.Retrieval,
			Hits:      hits,
			Escalated: true,
			Reason:    why + " -> retrieval (fallback strategy)",
		}
	}

	in := r.deps.Classifier.Classify(ctx, q)
	return Decision{
		Intent:    in,
		Hits:      hits,
		Escalated: true,
		Reason:    fmt.Sprintf("%s -> classifier -> %s", why, in),
	}
}

// Route trims query, decides its intent and runs the matching pipeline.
func (r *Router) Route(ctx context.Context, query string) (Result, error) {
	res, _, err := r.RouteWithDecision(ctx, query)
	return res, err
}

// RouteWithDecision is Route that also reports how the query was dispatched.
func (r *Router) RouteWithDecision(ctx context.Context, query string) (Result, Decision, error) {
	return r.RouteTopK(ctx, query, 0)
}

// RouteTopK is RouteWithDecision with a per-call passage count for the
// retrieval pipeline. k <= 0 uses the router's configured count.
func (r *Router) RouteTopK(ctx context.Context, query string, k int) (Result, Decision, error) {
	if k <= 0 {
		k = r.k
	}
	q, err := validateQuery(query)
	if err != nil {
		return nil, Decision{}, err
	}

	d := r.decide(ctx, q)
	r.logger.Info("query routed",
		zap.String("mode", d.Intent.String()),
		zap.Bool("sql_hit", d.Hits.SQL),
		zap.Bool("rag_hit", d.Hits.RAG),
		zap.Bool("escalated", d.Escalated),
		zap.String("reason", d.Reason),
		zap.String("query", util.TruncateRunes(q, logQueryRunes)))

	var res Result
	switch d.Intent {
	case intent.Structured:
		res, err = r.structured(ctx, q)
	case intent.Retrieval:
		res, err = r.retrieval(ctx, q, k)
	default:
		res, err = r.conversational(ctx, q)
	}
	if err != nil {
		r.logger.Warn("pipeline failed",
			zap.String("mode", d.Intent.String()), zap.Error(err))
		return nil, d, err
	}
	return res, d, nil
}

func (r *Router) structured(ctx context.Context, q string) (Result, error) {
	sql, table, err := r.deps.Structured.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return &StructuredResult{
		Query:    sql,
		RowCount: table.RowCount(),
		Rows:     table.Rows,
		Columns:  table.Columns,
		ExecErr:  table.Err,
	}, nil
}

func (r *Router) retrieval(ctx context.Context, q string, k int) (Result, error) {
	ans, err := r.deps.Retrieval.Answer(ctx, q, k)
	if err != nil {
		return nil, err
	}
	return &RetrievalResult{Answer: ans.Text, Passages: ans.Passages}, nil
}

func (r *Router) conversational(ctx context.Context, q string) (Result, error) {
	if r.deps.Model == nil {
		return nil, llm.Unavailable(errors.New("no conversational model configured"))
	}
	out, err := r.deps.Model.Complete(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("conversational answer: %w", llm.Unavailable(err))
	}
	return &ConversationalResult{Answer: strings.TrimSpace(out)}, nil
}
