// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package univdb owns the tabular university dataset: the university_info
// schema, CSV ingestion into SQLite, and the schema description handed to
// the text-to-SQL translator.
//
// # Key Types
//
//   - Column: one CSV header mapped onto a typed table column
//   - IngestReport: what an ingestion run loaded
//
// # Ingestion
//
// The source CSV ships from a Korean public data portal, so it may be UTF-8
// (with or without a BOM) or CP949/EUC-KR. Numeric cells carry thousands
// separators. Integer columns coerce unparseable cells to 0; real columns
// coerce them to NULL.
//
// # Usage
//
//	report, err := univdb.Ingest(ctx, "data/db_seed/대학주요정보.csv", "data/db/univ.db")
//
//	db, err := univdb.OpenReadOnly("data/db/univ.db")
//	defer db.Close()
//	info, err := univdb.DescribeSchema(ctx, db, 3)
package univdb
