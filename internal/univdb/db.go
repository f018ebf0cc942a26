// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package univdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrDatabaseMissing is returned when the dataset file does not exist.
// Opening it anyway would silently create an empty database.
var ErrDatabaseMissing = errors.New("dataset database not found")

// OpenReadOnly opens an existing database with writes disabled.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, path)
		}
		return nil, err
	}

	dsn := path + "?" + url.Values{
		"_pragma": {"query_only(1)", "busy_timeout(5000)"},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Create opens (creating if needed) a writable database and applies Schema.
func Create(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// DescribeSchema renders every user table as its CREATE statement followed
// by up to sampleRows example rows, the format text-to-SQL prompts expect.
func DescribeSchema(ctx context.Context, db *sql.DB, sampleRows int) (string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
		 ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}

	type table struct{ name, ddl string }
	var tables []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.name, &t.ddl); err != nil {
			rows.Close()
			return "", fmt.Errorf("read schema: %w", err)
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}

	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(t.ddl))
		if sampleRows > 0 {
			sample, err := sampleTable(ctx, db, t.name, sampleRows)
			if err != nil {
				return "", err
			}
			b.WriteString("\n\n")
			b.WriteString(sample)
		}
	}
	return b.String(), nil
}

func sampleTable(ctx context.Context, db *sql.DB, name string, n int) (string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT %d`, name, n))
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", name, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "/*\n%d rows from %s table:\n%s\n", n, name, strings.Join(cols, "\t"))

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("sample %s: %w", name, err)
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = formatCell(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sample %s: %w", name, err)
	}
	b.WriteString("*/")
	return b.String(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
