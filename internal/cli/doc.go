// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the hybridqa command line.
//
// # Commands
//
//	hybridqa serve                    Run the HTTP API
//	hybridqa ask "질문"                Route one question and print the answer
//	hybridqa classify "질문"           Show the routing decision only
//	hybridqa ingest [--csv path]      Load the university CSV into SQLite
//	hybridqa index [--watch]          Build the vector index from documents
//	hybridqa history [--search text]  Show recorded questions
//	hybridqa history --export md      Write recorded questions to a file
//	hybridqa status [--generate]      Check the backend, database and index
//	hybridqa bench [--suite file]     Measure routing accuracy
//	hybridqa config init [path]       Write a default hybridqa.toml
//	hybridqa config show              Print the effective configuration
//
// Global flags: --config selects a TOML or JSON file, --verbose switches the
// log level to debug and --json prints machine-readable output.
//
// # Key Types
//
//   - App: the dependency graph built from a *config.Config
//   - JSONResponse: the envelope every --json command prints
//
// # Usage
//
//	func main() {
//		os.Exit(cli.Execute())
//	}
package cli
