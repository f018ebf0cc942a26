// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/logging"
	"github.com/jeranaias/hybridqa/internal/router"
)

// =============================================================================
// BENCHMARK RUNNER
// =============================================================================

// Router is the part of router.Router the runner drives.
type Router interface {
	Decide(ctx context.Context, query string) (router.Decision, error)
	RouteWithDecision(ctx context.Context, query string) (router.Result, router.Decision, error)
}

// Runner routes a suite of cases. It is not safe for concurrent use.
type Runner struct {
	router Router
	full   bool
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithFullRoute runs each case's pipeline as well as the decision.
func WithFullRoute(full bool) Option {
	return func(r *Runner) { r.full = full }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = logging.OrNop(l) }
}

// NewRunner creates a runner over rt.
func NewRunner(rt Router, opts ...Option) *Runner {
	r := &Runner{router: rt, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes every case in order. A failing case is recorded and the run
// continues; Run itself fails only when ctx is done.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Result, error) {
	res := &Result{
		FullRoute: r.full,
		StartTime: r.now(),
		Cases:     make([]CaseResult, 0, len(cases)),
	}

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Cases = append(res.Cases, r.runCase(ctx, c))
	}

	res.EndTime = r.now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	res.computeAggregates()

	r.logger.Info("routing benchmark finished",
		zap.Int("cases", len(res.Cases)),
		zap.Float64("accuracy", res.Accuracy),
		zap.Int("escalated", res.Escalated),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	cr := CaseResult{Query: c.Query, Want: c.Want.String()}

	start := r.now()
	var (
		d   router.Decision
		err error
	)
	if r.full {
		_, d, err = r.router.RouteWithDecision(ctx, c.Query)
	} else {
		d, err = r.router.Decide(ctx, c.Query)
	}
	cr.Latency = r.now().Sub(start)

	// A pipeline failure still leaves a usable decision.
	if d.Reason != "" {
		cr.Got = d.Intent.String()
		cr.Escalated = d.Escalated
		cr.Correct = d.Intent == c.Want
	}
	if err != nil {
		cr.Error = err.Error()
		r.logger.Debug("benchmark case failed", zap.String("query", c.Query), zap.Error(err))
	}
	return cr
}
