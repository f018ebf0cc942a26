// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData is the --json payload of ask.
type AskData struct {
	Query     string           `json:"query"`
	Mode      string           `json:"mode"`
	Escalated bool             `json:"escalated"`
	Reason    string           `json:"reason"`
	SQL       string           `json:"sql,omitempty"`
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	RowCount  int              `json:"row_count"`
	ExecError string           `json:"exec_error,omitempty"`
	Answer    string           `json:"answer,omitempty"`
	Sources   []SourceData     `json:"sources,omitempty"`
	Duration  string           `json:"duration"`
}

// SourceData describes one retrieved passage.
type SourceData struct {
	Source string  `json:"source"`
	Page   int     `json:"page,omitempty"`
	Chunk  int     `json:"chunk"`
	Score  float64 `json:"score"`
}

// ClassifyData is the --json payload of classify.
type ClassifyData struct {
	Query     string `json:"query"`
	Mode      string `json:"mode"`
	Label     string `json:"label"`
	Escalated bool   `json:"escalated"`
	SQLHit    string `json:"sql_keyword,omitempty"`
	RAGHit    string `json:"rag_keyword,omitempty"`
	Reason    string `json:"reason"`
	Strategy  string `json:"strategy"`
}

// IngestData is the --json payload of ingest.
type IngestData struct {
	CSV      string `json:"csv"`
	Database string `json:"database"`
	Rows     int    `json:"rows"`
	Encoding string `json:"encoding"`
	Coerced  int    `json:"coerced"`
}

// IndexData is the --json payload of index.
type IndexData struct {
	DocsDir    string `json:"docs_dir"`
	IndexDir   string `json:"index_dir"`
	Documents  int    `json:"documents"`
	Passages   int    `json:"passages"`
	Sources    int    `json:"sources"`
	Dimensions int    `json:"dimensions"`
	EmbedModel string `json:"embed_model"`
	Duration   string `json:"duration"`
}

// StatusData is the --json payload of status.
type StatusData struct {
	Checks []StatusCheck `json:"checks"`
	OK     bool          `json:"ok"`
}

// StatusCheck is one line of status output.
type StatusCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}
