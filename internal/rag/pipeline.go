// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rag

import "context"

// Answer is the retrieval pipeline's output.
type Answer struct {
	Text     string
	Passages []Passage
}

// Pipeline runs retrieval then synthesis.
type Pipeline struct {
	retriever   *Retriever
	synthesizer *Synthesizer
}

// NewPipeline pairs a retriever with a synthesizer.
func NewPipeline(r *Retriever, s *Synthesizer) *Pipeline {
	return &Pipeline{retriever: r, synthesizer: s}
}

// Answer retrieves k passages for query and synthesizes an answer from them.
func (p *Pipeline) Answer(ctx context.Context, query string, k int) (*Answer, error) {
	passages, err := p.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	text, err := p.synthesizer.Synthesize(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Passages: passages}, nil
}
