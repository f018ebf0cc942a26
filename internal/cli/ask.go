// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/rag"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/storage"
	"github.com/jeranaias/hybridqa/internal/util"
)

type askOptions struct {
	k        int
	strategy string
	timeout  time.Duration
	noLog    bool
}

func newAskCmd(st *state) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Route one question and print the answer",
		Example: `  hybridqa ask "서울 지역 대학의 평균 취업률은?"
  hybridqa ask "국가장학금 신청 절차가 뭐야?" --k 5
  hybridqa ask "안녕하세요" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), st, cmd.OutOrStdout(), strings.Join(args, " "), opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.k, "k", 0, "passages to retrieve (default from config)")
	f.StringVar(&opts.strategy, "strategy", "", "override routing.strategy: classify or retrieval")
	f.DurationVar(&opts.timeout, "timeout", 0, "overall timeout (default: server.request_timeout_secs)")
	f.BoolVar(&opts.noLog, "no-log", false, "do not record the question in the chat log")
	return cmd
}

func runAsk(ctx context.Context, st *state, w io.Writer, query string, opts askOptions) error {
	app := st.app
	if opts.strategy != "" {
		app.Config.Routing.Strategy = opts.strategy
	}
	if opts.k > 0 {
		app.Config.Retrieval.K = opts.k
	}

	rt, err := app.Router()
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = time.Duration(app.Config.Server.RequestTimeoutSecs) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, decision, err := rt.RouteWithDecision(ctx, query)
	took := time.Since(start)

	if !opts.noLog {
		recordAsk(ctx, app, query, res, decision, err, took)
	}
	if err != nil {
		return err
	}

	if st.jsonMode {
		return NewJSONResponse("ask", askData(query, res, decision, took)).Write(w)
	}
	printResult(w, res, decision, took)
	return nil
}

// recordAsk appends the question to the chat log when one is configured.
// Failures are logged only.
func recordAsk(ctx context.Context, app *App, query string, res router.Result, d router.Decision, err error, took time.Duration) {
	if strings.TrimSpace(query) == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	l, lerr := app.ChatLog(ctx)
	if lerr != nil || l == nil {
		if lerr != nil {
			app.Logger.Warn("chat log unavailable", zap.Error(lerr))
		}
		return
	}
	defer l.Close()
	if _, rerr := l.Record(ctx, storage.FromRoute(query, res, d, err, took)); rerr != nil {
		app.Logger.Warn("chat log write failed", zap.Error(rerr))
	}
}

func askData(query string, res router.Result, d router.Decision, took time.Duration) AskData {
	data := AskData{
		Query:     strings.TrimSpace(query),
		Mode:      res.Mode().String(),
		Escalated: d.Escalated,
		Reason:    d.Reason,
		Duration:  formatDurationShort(took),
	}
	switch v := res.(type) {
	case *router.StructuredResult:
		data.SQL = string(v.Query)
		data.Columns = v.Columns
		data.RowCount = v.RowCount
		for _, row := range v.Rows {
			data.Rows = append(data.Rows, row)
		}
		if v.ExecErr != nil {
			data.ExecError = v.ExecErr.Error()
		}
	case *router.RetrievalResult:
		data.Answer = v.Answer
		data.Sources = sourceData(v.Passages)
		data.RowCount = len(v.Passages)
	case *router.ConversationalResult:
		data.Answer = v.Answer
	}
	return data
}

func sourceData(passages []rag.Passage) []SourceData {
	out := make([]SourceData, 0, len(passages))
	for _, p := range passages {
		out = append(out, SourceData{Source: p.Source, Page: p.Page, Chunk: p.Chunk, Score: p.Score})
	}
	return out
}

func printResult(w io.Writer, res router.Result, d router.Decision, took time.Duration) {
	fmt.Fprintf(w, "[%s] %s (%s)\n\n", res.Mode(), d.Reason, formatDurationShort(took))

	switch v := res.(type) {
	case *router.StructuredResult:
		fmt.Fprintf(w, "SQL: %s\n\n", v.Query)
		if v.ExecErr != nil {
			fmt.Fprintf(w, "실행 오류: %v\n", v.ExecErr)
		}
		rows := make([]map[string]any, len(v.Rows))
		for i, r := range v.Rows {
			rows[i] = r
		}
		writeTable(w, v.Columns, rows)
		fmt.Fprintf(w, "\n%d개의 데이터 반환\n", v.RowCount)

	case *router.RetrievalResult:
		fmt.Fprintln(w, v.Answer)
		if len(v.Passages) > 0 {
			fmt.Fprintln(w)
			section(w, "근거 문서")
			for i, p := range v.Passages {
				loc := p.Source
				if p.Page > 0 {
					loc = fmt.Sprintf("%s p.%d", p.Source, p.Page)
				}
				fmt.Fprintf(w, "%d. %s (%.3f) %s\n", i+1, loc, p.Score,
					util.TruncateWidth(util.SingleLine(p.Content), 60))
			}
		}

	case *router.ConversationalResult:
		fmt.Fprintln(w, v.Answer)
	}
}
