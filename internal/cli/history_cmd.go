// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hybridqa/internal/export"
	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/storage"
	"github.com/jeranaias/hybridqa/internal/util"
)

func newHistoryCmd(st *state) *cobra.Command {
	var (
		limit  int
		search string
		stats  bool
		format string
		outDir string
	)

	cmd := &cobra.Command{
		Use:     "history [id]",
		Aliases: []string{"log"},
		Short:   "Show recorded questions",
		Example: `  hybridqa history
  hybridqa history --search 장학금
  hybridqa history --stats
  hybridqa history --export md --out reports
  hybridqa history 0b6f1f1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := st.app.ChatLog(ctx)
			if err != nil {
				return err
			}
			if l == nil {
				return &UsageError{Message: "chat log is disabled (data.chatlog_path is empty)"}
			}
			defer l.Close()

			w := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				return showEntry(ctx, w, st.jsonMode, l, args[0])
			case stats:
				return showCounts(ctx, w, st.jsonMode, l)
			}

			var entries []*storage.Entry
			if search != "" {
				entries, err = l.Search(ctx, search, limit)
			} else {
				entries, err = l.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}
			if format != "" {
				return exportEntries(w, st.jsonMode, entries, format, outDir)
			}
			if st.jsonMode {
				return NewJSONResponse("history", entries).Write(w)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "no recorded questions")
				return nil
			}
			for _, e := range entries {
				status := "ok"
				if e.Error != "" {
					status = "error"
				}
				fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					util.PadWidth(e.Mode, len("conversational")),
					util.PadWidth(status, 5),
					e.ID[:8],
					e.Preview())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to list")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only questions or answers containing text")
	cmd.Flags().BoolVar(&stats, "stats", false, "count entries by mode")
	cmd.Flags().StringVar(&format, "export", "", "write the listed entries to a file: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for --export")
	return cmd
}

// exportEntries writes entries oldest first to a file in dir.
func exportEntries(w io.Writer, jsonMode bool, entries []*storage.Entry, format, dir string) error {
	opts := export.DefaultOptions()
	opts.OutputDir = dir
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	ordered := slices.Clone(entries)
	slices.Reverse(ordered)
	path, err := export.ToFile(ordered, exp, opts)
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("history", map[string]any{"path": path, "entries": len(ordered)}).Write(w)
	}
	_, err = fmt.Fprintf(w, "exported %d entries to %s\n", len(ordered), path)
	return err
}

func showEntry(ctx context.Context, w io.Writer, jsonMode bool, l *storage.ChatLog, id string) error {
	e, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("history", e).Write(w)
	}

	fmt.Fprintf(w, "id:        %s\n", e.ID)
	fmt.Fprintf(w, "time:      %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "mode:      %s\n", e.Mode)
	fmt.Fprintf(w, "escalated: %t\n", e.Escalated)
	fmt.Fprintf(w, "duration:  %s\n", formatDurationShort(e.Duration))
	fmt.Fprintf(w, "query:     %s\n", e.Query)
	if e.SQL != "" {
		fmt.Fprintf(w, "sql:       %s\n", e.SQL)
		fmt.Fprintf(w, "rows:      %d\n", e.RowCount)
	}
	if e.Answer != "" {
		fmt.Fprintf(w, "answer:\n%s\n", e.Answer)
	}
	if e.Error != "" {
		fmt.Fprintf(w, "error:     %s\n", e.Error)
	}
	return nil
}

func showCounts(ctx context.Context, w io.Writer, jsonMode bool, l *storage.ChatLog) error {
	counts, err := l.CountByMode(ctx)
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("history", counts).Write(w)
	}

	modes := make([]string, 0, len(counts))
	for m := range counts {
		modes = append(modes, m)
	}
	// Known modes first, in routing priority order.
	rank := func(m string) int {
		if in, err := intent.Parse(m); err == nil {
			return in.Rank()
		}
		return len(intent.Priority)
	}
	sort.Slice(modes, func(i, j int) bool {
		ri, rj := rank(modes[i]), rank(modes[j])
		if ri != rj {
			return ri < rj
		}
		return modes[i] < modes[j]
	})

	total := 0
	for _, m := range modes {
		fmt.Fprintf(w, "%s %d\n", util.PadWidth(m, len("conversational")), counts[m])
		total += counts[m]
	}
	fmt.Fprintf(w, "%s %d\n", util.PadWidth("total", len("conversational")), total)
	return nil
}
