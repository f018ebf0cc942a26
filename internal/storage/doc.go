// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists an audit log of routed queries.
//
// Every request answered by the server or by hybridqa ask is recorded with
// the mode it was routed to, the generated SQL (structured mode), the row
// count and the answer or error, so dispatch decisions can be reviewed
// after the fact.
//
// # Key Types
//
//   - ChatLog: SQLite-backed store
//   - Entry: one routed request
//   - FromRoute: builds an Entry from a router result
//
// # Usage
//
//	log, err := storage.OpenChatLog(ctx, "data/logs/chatlog.db")
//	defer log.Close()
//
//	id, err := log.Record(ctx, storage.FromRoute(q, res, decision, err, took))
//	recent, err := log.Recent(ctx, 20)
//	hits, err := log.Search(ctx, "장학금", 10)
package storage
