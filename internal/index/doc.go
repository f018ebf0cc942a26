// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides the persisted vector index used for retrieval.
//
// An index is a directory containing a single SQLite file (index.db) that
// stores passages and their embeddings. Search is brute-force cosine
// similarity over every stored vector, which is fast enough for a policy
// corpus of a few thousand chunks and keeps ranking fully deterministic.
//
// # Key Types
//
//   - Index: read-only handle, opened per request
//   - Builder: writes a new index and swaps it in atomically
//   - Passage / Hit: an indexed chunk and a scored search result
//
// # Errors
//
// Open reports ErrIndexUnavailable for a missing directory, a missing
// index file, an unknown schema version, or an index with no passages.
// Retrieval must never silently return zero passages.
//
// # Usage
//
// Build an index:
//
//	b, err := index.NewBuilder(ctx, "data/vector", "bge-m3")
//	_, err = b.Add(ctx, index.Passage{Source: "장학금.pdf", Page: 3, Content: text}, vec)
//	stats, err := b.Commit(ctx)
//
// Search it:
//
//	idx, err := index.Open(ctx, "data/vector")
//	if errors.Is(err, index.ErrIndexUnavailable) {
//	    // surface to caller
//	}
//	defer idx.Close()
//	hits, err := idx.Search(ctx, queryVec, 3)
package index
