// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/univdb"
)

func newIngestCmd(st *state) *cobra.Command {
	var csvPath, dbPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the university CSV into the SQLite database",
		Long: `ingest reads the university CSV (UTF-8 or CP949/EUC-KR), maps its Korean
headers onto the university_info columns and replaces the table contents.`,
		Example: `  hybridqa ingest
  hybridqa ingest --csv data/db_seed/대학주요정보.csv --db data/db/univ.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := st.app
			if csvPath == "" {
				csvPath = app.Config.Data.CSVPath
			}
			if dbPath == "" {
				dbPath = app.Config.Data.DBPath
			}

			report, err := univdb.Ingest(cmd.Context(), csvPath, dbPath)
			if err != nil {
				return err
			}
			app.Logger.Info("ingest finished",
				zap.String("csv", csvPath),
				zap.Int("rows", report.Rows),
				zap.String("encoding", report.Encoding),
				zap.Int("coerced", report.Coerced))

			data := IngestData{
				CSV:      csvPath,
				Database: dbPath,
				Rows:     report.Rows,
				Encoding: report.Encoding,
				Coerced:  report.Coerced,
			}
			w := cmd.OutOrStdout()
			if st.jsonMode {
				return NewJSONResponse("ingest", data).Write(w)
			}
			fmt.Fprintf(w, "%d rows loaded into %s (encoding %s)\n", data.Rows, data.Database, data.Encoding)
			if data.Coerced > 0 {
				fmt.Fprintf(w, "%d unparseable numeric cells replaced with defaults\n", data.Coerced)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file (default data.csv_path)")
	cmd.Flags().StringVar(&dbPath, "db", "", "database file (default data.db_path)")
	return cmd
}
