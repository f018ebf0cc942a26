// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/ollama"
	"github.com/jeranaias/hybridqa/internal/univdb"
)

const (
	// statusTimeout bounds the reachability and model checks.
	statusTimeout = 3 * time.Second
	// generateTimeout bounds the optional test generation.
	generateTimeout = 60 * time.Second
	// generatePrompt is short so the test generation finishes quickly.
	generatePrompt = "안녕하세요"
)

// errChecksFailed is returned when any status check fails.
var errChecksFailed = errors.New("one or more checks failed")

func newStatusCmd(st *state) *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"doctor"},
		Short:   "Check the backend, models, database and index",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := collectStatus(cmd.Context(), st.app, generate)
			w := cmd.OutOrStdout()
			if st.jsonMode {
				if err := NewJSONResponse("status", data).Write(w); err != nil {
					return err
				}
			} else {
				printStatus(w, data)
			}
			if !data.OK {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "run a short generation and report its speed")
	return cmd
}

func collectStatus(ctx context.Context, app *App, generate bool) StatusData {
	cfg := app.Config
	var checks []StatusCheck
	add := func(name string, err error, detail string) {
		c := StatusCheck{Name: name, OK: err == nil, Detail: detail}
		if err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
	}

	checkCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	backendErr := app.Client.CheckRunning(checkCtx)
	add("backend", backendErr, app.Client.GetConfig().BaseURL)

	if backendErr == nil {
		for _, m := range []struct{ name, model string }{
			{"generation model", cfg.Ollama.Model},
			{"embedding model", cfg.Ollama.EmbedModel},
		} {
			var err error
			if !app.Client.ModelExists(checkCtx, m.model) {
				err = fmt.Errorf("%s is not installed (ollama pull %s)", m.model, m.model)
			}
			add(m.name, err, m.model)
		}
		if generate {
			detail, err := checkGeneration(ctx, app.Client, cfg.Ollama.Model)
			add("generation", err, detail)
		}
	}

	add("database", checkDatabase(ctx, cfg.Data.DBPath), cfg.Data.DBPath)

	stats, err := checkIndex(ctx, cfg.Data.VectorDir)
	detail := ""
	if err == nil {
		detail = fmt.Sprintf("%d passages, %d sources, %s", stats.Passages, stats.Sources, stats.EmbedModel)
	}
	add("index", err, detail)

	ok := true
	for _, c := range checks {
		ok = ok && c.OK
	}
	return StatusData{Checks: checks, OK: ok}
}

// checkGeneration runs one short completion and reports its throughput.
func checkGeneration(ctx context.Context, client *ollama.Client, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := client.Generate(ctx, &ollama.GenerateRequest{
		Model:   model,
		Prompt:  generatePrompt,
		Options: &ollama.Options{NumPredict: 32},
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d tokens, %.1f tokens/s, %s",
		resp.EvalCount, resp.TokensPerSecond(), formatDurationShort(resp.TotalTime())), nil
}

func checkDatabase(ctx context.Context, path string) error {
	db, err := univdb.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+univdb.TableName).Scan(&n); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%s has no rows; run hybridqa ingest", univdb.TableName)
	}
	return nil
}

func checkIndex(ctx context.Context, dir string) (index.Stats, error) {
	idx, err := index.Open(ctx, dir)
	if err != nil {
		return index.Stats{}, err
	}
	defer idx.Close()
	return idx.Stats(), nil
}

func printStatus(w io.Writer, data StatusData) {
	section(w, "hybridqa status")
	for _, c := range data.Checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%-4s  %-16s  %s\n", mark, c.Name, c.Detail)
	}
}
