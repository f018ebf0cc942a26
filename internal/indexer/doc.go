// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package indexer builds the vector index from a directory of documents.
//
// Documents (.txt, .md, .pdf) are read, split into overlapping chunks with
// a recursive character splitter, embedded concurrently and written with
// index.Builder, which swaps the new index in atomically. PDFs are read
// page by page so each passage keeps its page number.
//
// # Key Types
//
//   - Indexer: runs a full build
//   - Document: one text unit (a whole text file, or one PDF page)
//   - Report: what a build produced
//   - Watcher: rebuilds the index when the documents directory changes
//
// # Usage
//
//	ix := indexer.New(embedder, indexer.Options{
//	    DocsDir:  "data/docs",
//	    IndexDir: "data/vector",
//	}, logger)
//	report, err := ix.Build(ctx)
//
// Watching:
//
//	w, err := indexer.NewWatcher(ix, 2*time.Second, logger)
//	err = w.Run(ctx) // blocks until ctx is done
package indexer
