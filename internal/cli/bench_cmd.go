// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hybridqa/internal/benchmark"
)

func newBenchCmd(st *state) *cobra.Command {
	var (
		suite string
		full  bool
		save  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure routing accuracy over a labelled question suite",
		Long: `bench routes every question of a suite and compares the chosen path with
its label. Without --suite the built-in suite is used. --full also runs
each pipeline, so latency includes SQL generation and retrieval.`,
		Example: `  hybridqa bench
  hybridqa bench --suite questions.json --full --save data/bench`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cases := benchmark.StandardCases()
			if suite != "" {
				var err error
				if cases, err = benchmark.LoadCases(suite); err != nil {
					return &UsageError{Message: err.Error()}
				}
			}

			rt, err := st.app.Router()
			if err != nil {
				return &UsageError{Message: err.Error()}
			}

			runner := benchmark.NewRunner(rt,
				benchmark.WithFullRoute(full),
				benchmark.WithLogger(st.app.Logger))
			res, err := runner.Run(cmd.Context(), cases)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if save != "" {
				store, err := benchmark.NewStorage(save)
				if err != nil {
					return err
				}
				path, err := store.Save(res)
				if err != nil {
					return err
				}
				if !st.jsonMode {
					defer fmt.Fprintf(w, "saved to %s\n", path)
				}
			}

			if st.jsonMode {
				return NewJSONResponse("bench", res).Write(w)
			}
			fmt.Fprint(w, res.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&suite, "suite", "", "JSON file of {\"query\", \"want\"} cases")
	cmd.Flags().BoolVar(&full, "full", false, "run each pipeline, not only the routing decision")
	cmd.Flags().StringVar(&save, "save", "", "directory to save the result JSON in")
	return cmd
}
