// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the query router over HTTP.
//
// # Endpoints
//
//   - POST /chat   - route a question; body {"query": "...", "k": 3}
//   - GET  /       - service banner
//   - GET  /health - liveness plus a check of the generation backend
//   - GET  /stats  - request counts by mode
//
// A /chat reply carries "mode" (structured, retrieval or conversational)
// and the fields of that mode: sql, rows, data and columns for structured
// answers, answer and sources for retrieval, answer for conversation.
//
// Errors use {"error": {"message", "code"}}. Blank or oversized queries are
// 400, a missing vector index is 503 and an unreachable model is 502.
//
// # Middleware
//
// Requests pass, in order, through panic recovery, request IDs, security
// headers, zap request logging, a per-IP token bucket and a body size cap.
//
// # Key Types
//
//   - Server: HTTP front end bound to a *router.Router
//   - RateLimiter: per-client golang.org/x/time/rate limiters
//   - Stats: request counters served by GET /stats
//
// # Usage
//
//	srv := server.New(rt, cfg.Server,
//		server.WithBackend(ollamaClient),
//		server.WithChatLog(chatlog),
//		server.WithLogger(logger))
//	go func() { _ = srv.ListenAndServe() }()
//	...
//	_ = srv.Shutdown(ctx)
package server
