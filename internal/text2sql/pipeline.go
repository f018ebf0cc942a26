// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package text2sql

import "context"

// Pipeline runs translation then execution. The stages are strictly
// sequential: the executor consumes the translator's output.
type Pipeline struct {
	translator *Translator
	executor   *Executor
}

// NewPipeline pairs a translator with an executor.
func NewPipeline(t *Translator, e *Executor) *Pipeline {
	return &Pipeline{translator: t, executor: e}
}

// Run answers query. The returned error is non-nil only when translation
// failed; execution failures surface as an empty result.
func (p *Pipeline) Run(ctx context.Context, query string) (GeneratedQuery, TabularResult, error) {
	q, err := p.translator.Translate(ctx, query)
	if err != nil {
		return "", TabularResult{}, err
	}
	return q, p.executor.Execute(ctx, q), nil
}
