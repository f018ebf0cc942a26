// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/hybridqa/internal/llm"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrIndexUnavailable means there is no usable index: the directory or
	// index file is missing, the format is unknown, or it holds no passages.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch means the query vector does not match the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// =============================================================================
// TYPES
// =============================================================================

// Passage is one indexed chunk of a source document.
type Passage struct {
	ID      int64  `json:"id"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Chunk   int    `json:"chunk"`
	Content string `json:"content"`
}

// Hit is a passage with its similarity to the query.
type Hit struct {
	Passage
	Score float64 `json:"score"`
}

// Stats describes an index.
type Stats struct {
	Passages   int
	Sources    int
	Dimensions int
	EmbedModel string
}

// =============================================================================
// INDEX
// =============================================================================

// Index is a read-only handle on a persisted index. Handles are cheap and
// meant to be opened per request and closed when done.
type Index struct {
	db    *sql.DB
	dir   string
	stats Stats
}

// Path returns the index file path for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Open opens the index in dir without creating anything.
func Open(ctx context.Context, dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrIndexUnavailable, dir)
	}
	path := Path(dir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	dsn := path + "?" + url.Values{"_pragma": {"query_only(1)"}}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, dir: dir}
	if err := idx.loadStats(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if idx.stats.Passages == 0 {
		db.Close()
		return nil, fmt.Errorf("%w: %s holds no passages", ErrIndexUnavailable, path)
	}
	return idx, nil
}

// Close releases the handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Stats returns counts captured when the index was opened.
func (idx *Index) Stats() Stats {
	return idx.stats
}

func (idx *Index) loadStats(ctx context.Context) error {
	meta := map[string]string{}
	rows, err := idx.db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		meta[k] = v
	}
	rows.Close()

	if v := meta["schema_version"]; v != strconv.Itoa(SchemaVersion) {
		return fmt.Errorf("%w: schema version %q, want %d", ErrIndexUnavailable, v, SchemaVersion)
	}
	idx.stats.EmbedModel = meta["embed_model"]
	idx.stats.Dimensions, _ = strconv.Atoi(meta["dimensions"])

	err = idx.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT source) FROM passages",
	).Scan(&idx.stats.Passages, &idx.stats.Sources)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns the k passages most similar to query by cosine similarity,
// best first. Equal scores keep insertion order, so repeated searches on an
// unchanged index return identical results.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if idx.stats.Dimensions > 0 && len(query) != idx.stats.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, index has %d",
			ErrDimensionMismatch, len(query), idx.stats.Dimensions)
	}

	rows, err := idx.db.QueryContext(ctx,
		"SELECT id, source, page, chunk, content, embedding FROM passages ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var blob []byte
		if err := rows.Scan(&h.ID, &h.Source, &h.Page, &h.Chunk, &h.Content, &blob); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		h.Score = llm.CosineSimilarity(query, DecodeVector(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// =============================================================================
// VECTOR ENCODING
// =============================================================================

// EncodeVector packs v as little-endian float32.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a vector written by EncodeVector.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
