// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/indexer"
)

func newIndexCmd(st *state) *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index from the documents directory",
		Long: `index splits every .txt, .md and .pdf file under data.docs_dir into
overlapping chunks, embeds them and atomically replaces the index in
data.vector_dir. With --watch it keeps running and rebuilds on change.`,
		Example: `  hybridqa index
  hybridqa index --watch --debounce 5s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix := st.app.Indexer()
			w := cmd.OutOrStdout()

			report, err := ix.Build(cmd.Context())
			if err != nil {
				return err
			}
			if err := printIndexReport(w, st.jsonMode, ix.Options(), report); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchIndex(ctx, st, ix, debounce, w)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild when documents change")
	cmd.Flags().DurationVar(&debounce, "debounce", indexer.DefaultDebounce, "quiet period before a rebuild")
	return cmd
}

func watchIndex(ctx context.Context, st *state, ix *indexer.Indexer, debounce time.Duration, w io.Writer) error {
	watcher, err := indexer.NewWatcher(ix, debounce, st.app.Logger)
	if err != nil {
		return err
	}
	watcher.OnBuild = func(r *indexer.Report, err error) {
		if err != nil {
			st.app.Logger.Warn("rebuild failed", zap.Error(err))
			return
		}
		_ = printIndexReport(w, st.jsonMode, ix.Options(), r)
	}
	return watcher.Run(ctx)
}

func printIndexReport(w io.Writer, jsonMode bool, opts indexer.Options, r *indexer.Report) error {
	data := IndexData{
		DocsDir:    opts.DocsDir,
		IndexDir:   opts.IndexDir,
		Documents:  r.Documents,
		Passages:   r.Stats.Passages,
		Sources:    r.Stats.Sources,
		Dimensions: r.Stats.Dimensions,
		EmbedModel: r.Stats.EmbedModel,
		Duration:   formatDurationShort(r.Duration),
	}
	if jsonMode {
		return NewJSONResponse("index", data).Write(w)
	}
	_, err := fmt.Fprintf(w, "indexed %d passages from %d sources (%d documents, %d dims, %s) in %s\n",
		data.Passages, data.Sources, data.Documents, data.Dimensions, data.EmbedModel, data.Duration)
	return err
}
