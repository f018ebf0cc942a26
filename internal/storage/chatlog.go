// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/hybridqa/internal/util"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("chat log entry not found")

// DefaultMaxEntries bounds the log; the oldest entries are pruned past it.
const DefaultMaxEntries = 10000

const previewRunes = 50

const schema = `
CREATE TABLE IF NOT EXISTS chat_log (
    id          TEXT PRIMARY KEY,
    created_at  INTEGER NOT NULL,
    query       TEXT NOT NULL,
    mode        TEXT NOT NULL,
    escalated   INTEGER NOT NULL DEFAULT 0,
    sql         TEXT NOT NULL DEFAULT '',
    row_count   INTEGER NOT NULL DEFAULT 0,
    answer      TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_chat_log_created ON chat_log(created_at);
`

// =============================================================================
// ENTRY TYPE
// =============================================================================

// Entry is one routed request.
type Entry struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Query     string        `json:"query"`
	Mode      string        `json:"mode"`
	Escalated bool          `json:"escalated"`
	SQL       string        `json:"sql,omitempty"`
	RowCount  int           `json:"row_count"`
	Answer    string        `json:"answer,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Preview returns the query on one line, truncated for listings.
func (e *Entry) Preview() string {
	return util.TruncateRunes(util.SingleLine(e.Query), previewRunes)
}

// =============================================================================
// CHAT LOG
// =============================================================================

// ChatLog stores entries in a SQLite database. It is safe for concurrent use.
type ChatLog struct {
	db *sql.DB

	// MaxEntries limits stored entries (0 = unlimited).
	MaxEntries int
}

// OpenChatLog opens or creates the log at path.
func OpenChatLog(ctx context.Context, path string) (*ChatLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chat log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat log: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize chat log schema: %w", err)
	}
	return &ChatLog{db: db, MaxEntries: DefaultMaxEntries}, nil
}

// Close closes the database.
func (l *ChatLog) Close() error {
	return l.db.Close()
}

// Record stores e and returns its id. ID and CreatedAt are filled in when unset.
func (l *ChatLog) Record(ctx context.Context, e *Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO chat_log (id, created_at, query, mode, escalated, sql, row_count, answer, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixMilli(), e.Query, e.Mode, e.Escalated, e.SQL,
		e.RowCount, e.Answer, e.Error, e.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("failed to record chat log entry: %w", err)
	}

	if l.MaxEntries > 0 {
		if err := l.enforceLimit(ctx); err != nil {
			return e.ID, err
		}
	}
	return e.ID, nil
}

// enforceLimit removes the oldest entries beyond MaxEntries.
func (l *ChatLog) enforceLimit(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM chat_log WHERE id IN (
			SELECT id FROM chat_log ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?
		)`, l.MaxEntries)
	if err != nil {
		return fmt.Errorf("failed to prune chat log: %w", err)
	}
	return nil
}

const selectColumns = `id, created_at, query, mode, escalated, sql, row_count, answer, error, duration_ms`

// Get loads a single entry.
func (l *ChatLog) Get(ctx context.Context, id string) (*Entry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM chat_log WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Recent returns up to limit entries, newest first.
func (l *ChatLog) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return l.query(ctx, `SELECT `+selectColumns+` FROM chat_log
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// Search returns entries whose query or answer contains text, newest first.
func (l *ChatLog) Search(ctx context.Context, text string, limit int) ([]*Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(text) + "%"
	return l.query(ctx, `SELECT `+selectColumns+` FROM chat_log
		WHERE query LIKE ? ESCAPE '\' OR answer LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, pattern, pattern, limit)
}

// CountByMode returns how many entries were routed to each mode.
func (l *ChatLog) CountByMode(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT mode, COUNT(*) FROM chat_log GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("failed to count chat log entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mode string
		var n int
		if err := rows.Scan(&mode, &n); err != nil {
			return nil, err
		}
		counts[mode] = n
	}
	return counts, rows.Err()
}

func (l *ChatLog) query(ctx context.Context, q string, args ...any) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat log: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e          Entry
		createdAt  int64
		durationMs int64
	)
	err := s.Scan(&e.ID, &createdAt, &e.Query, &e.Mode, &e.Escalated, &e.SQL,
		&e.RowCount, &e.Answer, &e.Error, &durationMs)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = time.UnixMilli(createdAt)
	e.Duration = time.Duration(durationMs) * time.Millisecond
	return &e, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
