// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Builder writes a fresh index next to the live one and swaps it in on
// Commit, so readers see either the old index or the complete new one.
// A Builder is not safe for concurrent use.
type Builder struct {
	dir   string
	tmp   string
	model string

	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt

	dims    int
	count   int
	sources map[string]bool
}

// NewBuilder starts building an index for dir, creating dir if needed.
// embedModel is recorded so readers can detect a model change.
func NewBuilder(ctx context.Context, dir, embedModel string) (*Builder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp := Path(dir) + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale build: %w", err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := &Builder{dir: dir, tmp: tmp, model: embedModel, db: db, sources: map[string]bool{}}
	if err := b.init(ctx); err != nil {
		b.Abort()
		return nil, err
	}
	return b, nil
}

func (b *Builder) init(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, InitMetadata); err != nil {
		return fmt.Errorf("failed to initialize metadata: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	b.tx = tx

	b.stmt, err = tx.PrepareContext(ctx,
		"INSERT INTO passages (source, page, chunk, content, embedding) VALUES (?, ?, ?, ?, ?)")
	return err
}

// Add appends a passage. All vectors must share one dimension.
func (b *Builder) Add(ctx context.Context, p Passage, vec []float32) (int64, error) {
	if len(vec) == 0 {
		return 0, fmt.Errorf("passage %s#%d: empty embedding", p.Source, p.Chunk)
	}
	if b.dims == 0 {
		b.dims = len(vec)
	} else if len(vec) != b.dims {
		return 0, fmt.Errorf("%w: passage %s#%d has %d, index has %d",
			ErrDimensionMismatch, p.Source, p.Chunk, len(vec), b.dims)
	}

	res, err := b.stmt.ExecContext(ctx, p.Source, p.Page, p.Chunk, p.Content, EncodeVector(vec))
	if err != nil {
		return 0, fmt.Errorf("insert passage: %w", err)
	}
	b.count++
	b.sources[p.Source] = true
	return res.LastInsertId()
}

// Commit finalizes the build and atomically replaces the live index.
func (b *Builder) Commit(ctx context.Context) (Stats, error) {
	meta := map[string]string{
		"embed_model": b.model,
		"dimensions":  strconv.Itoa(b.dims),
	}
	for k, v := range meta {
		if _, err := b.tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", k, v); err != nil {
			b.Abort()
			return Stats{}, fmt.Errorf("write metadata: %w", err)
		}
	}

	b.stmt.Close()
	if err := b.tx.Commit(); err != nil {
		b.Abort()
		return Stats{}, fmt.Errorf("commit index: %w", err)
	}
	b.tx = nil
	if err := b.db.Close(); err != nil {
		os.Remove(b.tmp)
		return Stats{}, err
	}
	if err := os.Rename(b.tmp, Path(b.dir)); err != nil {
		os.Remove(b.tmp)
		return Stats{}, fmt.Errorf("install index: %w", err)
	}

	return Stats{
		Passages:   b.count,
		Sources:    len(b.sources),
		Dimensions: b.dims,
		EmbedModel: b.model,
	}, nil
}

// Abort discards the build, leaving the live index untouched.
func (b *Builder) Abort() {
	if b.stmt != nil {
		b.stmt.Close()
	}
	if b.tx != nil {
		b.tx.Rollback()
	}
	b.db.Close()
	os.Remove(b.tmp)
}
