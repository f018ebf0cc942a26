// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
)

// DefaultK is the number of passages retrieved when the caller passes k <= 0.
const DefaultK = 3

// Passage is a retrieved chunk with its source and similarity score.
type Passage = index.Hit

// Retriever searches the index directory for passages similar to a query.
type Retriever struct {
	dir        string
	embedder   llm.Embedder
	defaultK   int
	embedModel string
	logger     *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithDefaultK overrides DefaultK.
func WithDefaultK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

// WithEmbedModel names the embedding model in use, so a mismatch with the
// model the index was built with can be logged.
func WithEmbedModel(model string) RetrieverOption {
	return func(r *Retriever) { r.embedModel = model }
}

// NewRetriever creates a Retriever over the index in dir.
func NewRetriever(dir string, embedder llm.Embedder, logger *zap.Logger, opts ...RetrieverOption) *Retriever {
	r := &Retriever{dir: dir, embedder: embedder, defaultK: DefaultK, logger: logging.OrNop(logger)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k passages, most similar first. The index is
// opened and closed within the call.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = r.defaultK
	}

	idx, err := index.Open(ctx, r.dir)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	if st := idx.Stats(); r.embedModel != "" && st.EmbedModel != "" && st.EmbedModel != r.embedModel {
		r.logger.Warn("index was built with a different embedding model",
			zap.String("index_model", st.EmbedModel), zap.String("query_model", r.embedModel))
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", llm.Unavailable(err))
	}

	hits, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("passages retrieved",
		zap.String("query", query), zap.Int("k", k), zap.Int("hits", len(hits)))
	return hits, nil
}
