// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package univdbtest builds small university_info datasets for tests.
package univdbtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeranaias/hybridqa/internal/univdb"
)

// Rows is a fixture covering two regions, one malformed numeric cell and
// thousands separators.
var Rows = []map[string]string{
	{"No": "1", "학교명": "서울대학교", "본분교명": "본교", "지역명": "서울", "설립유형": "국립대법인",
		"취업률(학부)\n(2024,%)": "70.5", "입학정원(학부)\n(2025,명)": "3,344", "연평균 등록금(학부)\n(2025,천원)": "6,015.4"},
	{"No": "2", "학교명": "연세대학교", "본분교명": "본교", "지역명": "서울", "설립유형": "사립",
		"취업률(학부)\n(2024,%)": "68.1", "입학정원(학부)\n(2025,명)": "3,442", "연평균 등록금(학부)\n(2025,천원)": "9,096.2"},
	{"No": "3", "학교명": "부산대학교", "본분교명": "본교", "지역명": "부산", "설립유형": "국립",
		"취업률(학부)\n(2024,%)": "-", "입학정원(학부)\n(2025,명)": "n/a", "연평균 등록금(학부)\n(2025,천원)": "4,270.9"},
}

// CSV renders rows with the full header set; absent cells are left empty.
func CSV(t testing.TB, rows []map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, len(univdb.Columns))
	for i, c := range univdb.Columns {
		header[i] = c.Header
	}
	if err := w.Write(header); err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		rec := make([]string, len(header))
		for i, h := range header {
			rec[i] = row[h]
		}
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// NewDB ingests Rows into a fresh database under t.TempDir and returns its path.
func NewDB(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "seed.csv")
	if err := os.WriteFile(csvPath, CSV(t, Rows), 0o600); err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(dir, "db", "univ.db")
	if _, err := univdb.Ingest(context.Background(), csvPath, dbPath); err != nil {
		t.Fatalf("ingest fixture: %v", err)
	}
	return dbPath
}
