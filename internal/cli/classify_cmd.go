// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newClassifyCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <question>",
		Short: "Show which answer path a question would take",
		Long: `classify runs only the routing decision. The keyword stage needs no
backend; inconclusive questions consult the model classifier unless the
strategy is "retrieval".`,
		Example: `  hybridqa classify "서울 지역 대학의 평균 취업률은?"
  hybridqa classify "등록금 지원 조건" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := st.app.Router()
			if err != nil {
				return &UsageError{Message: err.Error()}
			}

			query := strings.Join(args, " ")
			d, err := rt.Decide(cmd.Context(), query)
			if err != nil {
				return err
			}

			data := ClassifyData{
				Query:     strings.TrimSpace(query),
				Mode:      d.Intent.String(),
				Label:     d.Intent.Label(),
				Escalated: d.Escalated,
				SQLHit:    d.Hits.SQLKeyword,
				RAGHit:    d.Hits.RAGKeyword,
				Reason:    d.Reason,
				Strategy:  rt.Strategy().String(),
			}
			w := cmd.OutOrStdout()
			if st.jsonMode {
				return NewJSONResponse("classify", data).Write(w)
			}

			fmt.Fprintf(w, "mode:      %s (%s)\n", data.Mode, data.Label)
			fmt.Fprintf(w, "reason:    %s\n", data.Reason)
			fmt.Fprintf(w, "escalated: %t\n", data.Escalated)
			fmt.Fprintf(w, "strategy:  %s\n", data.Strategy)
			return nil
		},
	}
	return cmd
}
