// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/hybridqa/internal/util"
)

// maxCellWidth caps a table column in terminal cells.
const maxCellWidth = 40

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// writeTable prints rows under columns, aligned by display width so that
// Hangul cells line up.
func writeTable(w io.Writer, columns []string, rows []map[string]any) {
	if len(columns) == 0 {
		return
	}

	cells := make([][]string, len(rows))
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = util.StringWidth(c)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i, c := range columns {
			v := util.TruncateWidth(util.SingleLine(util.FormatValue(row[c])), maxCellWidth)
			cells[r][i] = v
			widths[i] = max(widths[i], util.StringWidth(v))
		}
	}

	line := func(values []string) {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = util.PadWidth(v, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " | "), " "))
	}

	line(columns)
	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = strings.Repeat("-", widths[i])
	}
	fmt.Fprintln(w, strings.Join(seps, "-+-"))
	for _, row := range cells {
		line(row)
	}
}

// section prints a heading followed by an underline.
func section(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", util.StringWidth(title)))
}
