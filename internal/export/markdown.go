// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/hybridqa/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports entries to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders one section per entry, oldest first as given.
func (e *MarkdownExporter) Export(entries []*storage.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		first, last := timeRange(entries)
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML("hybridqa 질의 기록"))
		fmt.Fprintf(&sb, "entries: %d\n", len(entries))
		fmt.Fprintf(&sb, "from: %s\n", first.Format(time.RFC3339))
		fmt.Fprintf(&sb, "to: %s\n", last.Format(time.RFC3339))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: hybridqa\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# 질의 기록\n\n")

	for i, entry := range entries {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, escapeMarkdown(entry.Query))
		fmt.Fprintf(&sb, "- **Mode**: %s\n", entry.Mode)
		fmt.Fprintf(&sb, "- **Time**: %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if entry.Escalated {
			sb.WriteString("- **Classifier**: consulted\n")
		}
		fmt.Fprintf(&sb, "- **Duration**: %s\n\n", entry.Duration.Round(time.Millisecond))

		if entry.SQL != "" {
			sb.WriteString(fence("sql", entry.SQL))
			fmt.Fprintf(&sb, "%d개의 데이터 반환\n\n", entry.RowCount)
		}
		if entry.Answer != "" {
			sb.WriteString(strings.TrimSpace(entry.Answer))
			sb.WriteString("\n\n")
		}
		if entry.Error != "" {
			fmt.Fprintf(&sb, "> **Error**: %s\n\n", strings.ReplaceAll(entry.Error, "\n", " "))
		}

		if i < len(entries)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// fence wraps body in a code block whose fence is longer than any backtick
// run inside it.
func fence(lang, body string) string {
	ticks := "```"
	for strings.Contains(body, ticks) {
		ticks += "`"
	}
	return ticks + lang + "\n" + strings.TrimSpace(body) + "\n" + ticks + "\n\n"
}

func timeRange(entries []*storage.Entry) (first, last time.Time) {
	first, last = entries[0].CreatedAt, entries[0].CreatedAt
	for _, e := range entries[1:] {
		if e.CreatedAt.Before(first) {
			first = e.CreatedAt
		}
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}
	return first, last
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it holds special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
