// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
)

// ErrNoDocuments is returned when the documents directory yields no text.
// The live index is left untouched.
var ErrNoDocuments = errors.New("no indexable documents found")

// Options configures a build.
type Options struct {
	DocsDir      string
	IndexDir     string
	ChunkSize    int
	ChunkOverlap int
	Workers      int

	// EmbedModel is recorded in the index metadata.
	EmbedModel string
}

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
	defaultWorkers      = 4
)

func (o *Options) fill() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = defaultChunkOverlap
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
}

// Report summarizes a finished build.
type Report struct {
	Documents int
	Stats     index.Stats
	Duration  time.Duration
}

// Indexer turns a documents directory into a vector index.
type Indexer struct {
	embedder llm.Embedder
	opts     Options
	logger   *zap.Logger
}

// New creates an Indexer. Zero options take the defaults (chunks of 500
// characters overlapping by 50, 4 embedding workers).
func New(embedder llm.Embedder, opts Options, logger *zap.Logger) *Indexer {
	opts.fill()
	return &Indexer{embedder: embedder, opts: opts, logger: logging.OrNop(logger)}
}

// Options returns the effective options.
func (ix *Indexer) Options() Options {
	return ix.opts
}

// Split chunks documents into passages, preserving document order.
func (ix *Indexer) Split(docs []Document) ([]index.Passage, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(ix.opts.ChunkSize),
		textsplitter.WithChunkOverlap(ix.opts.ChunkOverlap),
	)

	var passages []index.Passage
	for _, doc := range docs {
		segments, err := splitter.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.Source, err)
		}
		chunk := 0
		for _, seg := range segments {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			passages = append(passages, index.Passage{
				Source:  doc.Source,
				Page:    doc.Page,
				Chunk:   chunk,
				Content: seg,
			})
			chunk++
		}
	}
	return passages, nil
}

// Build reads, splits, embeds and writes the whole corpus. On any error
// the previous index stays live.
func (ix *Indexer) Build(ctx context.Context) (*Report, error) {
	start := time.Now()

	docs, err := LoadDocuments(ix.opts.DocsDir)
	if err != nil {
		return nil, err
	}
	passages, err := ix.Split(docs)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, ErrNoDocuments
	}

	ix.logger.Info("embedding passages",
		zap.Int("documents", len(docs)),
		zap.Int("passages", len(passages)),
		zap.Int("workers", ix.opts.Workers))

	vecs, err := ix.embedAll(ctx, passages)
	if err != nil {
		return nil, err
	}

	b, err := index.NewBuilder(ctx, ix.opts.IndexDir, ix.opts.EmbedModel)
	if err != nil {
		return nil, err
	}
	for i, p := range passages {
		if _, err := b.Add(ctx, p, vecs[i]); err != nil {
			b.Abort()
			return nil, fmt.Errorf("add %s chunk %d: %w", p.Source, p.Chunk, err)
		}
	}
	stats, err := b.Commit(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Documents: len(docs), Stats: stats, Duration: time.Since(start)}
	ix.logger.Info("index built",
		zap.String("dir", ix.opts.IndexDir),
		zap.Int("passages", stats.Passages),
		zap.Int("sources", stats.Sources),
		zap.Int("dimensions", stats.Dimensions),
		zap.Duration("took", report.Duration))
	return report, nil
}

// embedAll embeds every passage with at most Workers requests in flight.
// Results keep passage order regardless of completion order.
func (ix *Indexer) embedAll(ctx context.Context, passages []index.Passage) ([][]float32, error) {
	vecs := make([][]float32, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for i := range passages {
		g.Go(func() error {
			vec, err := ix.embedder.Embed(gctx, passages[i].Content)
			if err != nil {
				return fmt.Errorf("embed %s chunk %d: %w", passages[i].Source, passages[i].Chunk, llm.Unavailable(err))
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}
