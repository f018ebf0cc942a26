// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the CLI, the server and
// the logging of routed queries.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis, for log fields
//   - TruncateWidth, PadWidth, StringWidth: display-width aware helpers for
//     tables containing Hangul (double-width) cells
//
// Value Formatting:
//   - FormatValue: renders SQLite cell values for tables and JSON messages
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	q := util.TruncateRunes(query, 80)
//	cell := util.PadWidth(util.FormatValue(row["school_name"]), 12)
//	err := util.AtomicWriteFile("hybridqa.toml", data, 0o644)
package util
