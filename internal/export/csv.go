// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/jeranaias/hybridqa/internal/storage"
)

// csvHeader is the column order of CSV exports.
var csvHeader = []string{
	"id", "created_at", "mode", "escalated", "duration_ms",
	"query", "sql", "row_count", "answer", "error",
}

// CSVExporter exports one row per entry. The output starts with a UTF-8
// BOM so spreadsheet tools detect the encoding of Hangul text.
type CSVExporter struct {
	options *Options
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(opts *Options) *CSVExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &CSVExporter{options: opts}
}

// Export converts entries to CSV.
func (e *CSVExporter) Export(entries []*storage.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, en := range entries {
		rec := []string{
			en.ID,
			en.CreatedAt.UTC().Format(time.RFC3339),
			en.Mode,
			strconv.FormatBool(en.Escalated),
			strconv.FormatInt(en.Duration.Milliseconds(), 10),
			en.Query,
			en.SQL,
			strconv.Itoa(en.RowCount),
			en.Answer,
			en.Error,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for CSV.
func (e *CSVExporter) FileExtension() string {
	return ".csv"
}

// MimeType returns the MIME type for CSV.
func (e *CSVExporter) MimeType() string {
	return "text/csv"
}
