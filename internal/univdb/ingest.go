// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package univdb

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	Rows     int
	Encoding string
	// Coerced counts numeric cells that could not be parsed and were
	// replaced by their column default.
	Coerced int
}

// MissingColumnsError lists CSV headers the mapping requires but the file lacks.
type MissingColumnsError struct {
	Headers []string
}

func (e *MissingColumnsError) Error() string {
	quoted := make([]string, len(e.Headers))
	for i, h := range e.Headers {
		quoted[i] = strconv.Quote(h)
	}
	return "CSV is missing required columns: " + strings.Join(quoted, ", ")
}

// Ingest loads csvPath into the university_info table of dbPath, replacing
// its previous contents in a single transaction.
func Ingest(ctx context.Context, csvPath, dbPath string) (*IngestReport, error) {
	raw, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	text, enc, err := DecodeKorean(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse CSV: %s is empty", csvPath)
	}

	positions, err := mapHeaders(records[0])
	if err != nil {
		return nil, err
	}

	db, err := Create(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+TableName); err != nil {
		return nil, fmt.Errorf("clear %s: %w", TableName, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement())
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	report := &IngestReport{Encoding: enc}
	args := make([]any, len(Columns))
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		for i, col := range Columns {
			cell := ""
			if p := positions[i]; p < len(rec) {
				cell = rec[p]
			}
			v, ok := Coerce(col.Kind, cell)
			if !ok {
				report.Coerced++
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", report.Rows+1, err)
		}
		report.Rows++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return report, nil
}

// DecodeKorean converts raw bytes to UTF-8, trying UTF-8, UTF-8 with a BOM,
// then CP949/EUC-KR. It returns the name of the encoding that worked.
func DecodeKorean(raw []byte) ([]byte, string, error) {
	if bytes.HasPrefix(raw, []byte("\xef\xbb\xbf")) {
		out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
		if err == nil && utf8.Valid(out) {
			return out, "utf-8-sig", nil
		}
	}
	if utf8.Valid(raw) {
		return raw, "utf-8", nil
	}

	// korean.EUCKR is the WHATWG "euc-kr" encoding, which is CP949.
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
	if err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		return out, "cp949", nil
	}
	return nil, "", fmt.Errorf("cannot decode CSV as utf-8, utf-8-sig, cp949 or euc-kr")
}

// finite reports whether f is neither NaN nor an infinity. ParseFloat
// accepts "nan" and "inf", which would otherwise pass as numbers.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Coerce converts a CSV cell for a column kind. Thousands separators and
// surrounding spaces are stripped first. ok is false when a non-empty
// numeric cell had to be replaced by the column default.
func Coerce(kind Kind, cell string) (v any, ok bool) {
	if kind == KindText {
		return strings.TrimSpace(cell), true
	}

	s := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	switch kind {
	case KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		// "1,234.0" style integers exported as floats.
		if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f), true
		}
		return int64(0), s == ""
	default:
		if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) {
			return f, true
		}
		return nil, s == ""
	}
}

func mapHeaders(header []string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}

	positions := make([]int, len(Columns))
	var missing []string
	for i, col := range Columns {
		p, ok := index[normalizeHeader(col.Header)]
		if !ok {
			missing = append(missing, col.Header)
			continue
		}
		positions[i] = p
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Headers: missing}
	}
	return positions, nil
}

func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.ReplaceAll(h, "\r\n", "\n"))
}

func insertStatement() string {
	names := make([]string, len(Columns))
	marks := make([]string, len(Columns))
	for i, col := range Columns {
		names[i] = col.Name
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		TableName, strings.Join(names, ", "), strings.Join(marks, ", "))
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
