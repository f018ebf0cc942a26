// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package benchmark measures how well the router assigns questions to answer
// paths.
//
// A suite is a list of questions labelled with the intent they should
// receive. The runner routes each one, records the decision and its latency
// and aggregates accuracy per intent.
//
// # Key Types
//
//   - Case: one labelled question
//   - Runner: drives a Router over a suite
//   - Result: per-case outcomes plus aggregates
//   - Storage: saves results as JSON files
//
// # Usage
//
//	runner := benchmark.NewRunner(rt, benchmark.WithFullRoute(false))
//	res, err := runner.Run(ctx, benchmark.StandardCases())
//	fmt.Println(res.Summary())
//
// # Modes
//
//   - Decide only (default): keyword stage plus classifier, no pipelines
//   - Full route: every case also runs its pipeline, so latency includes
//     SQL generation or retrieval
package benchmark
