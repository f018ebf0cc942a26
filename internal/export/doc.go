// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat log entries to files for review outside the
// tool.
//
// # Key Types
//
//   - Exporter: renders a slice of entries in one format
//   - Options: output directory and metadata switches
//
// # Supported Formats
//
//   - Markdown: one section per question, SQL in fenced blocks
//   - JSON: the entries as stored
//   - CSV: one row per entry, for spreadsheets
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(entries, exp, &export.Options{OutputDir: "."})
package export
