// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hybridqa/internal/config"
)

// ConfigData is the --json payload of config init and config show.
type ConfigData struct {
	Path   string         `json:"path,omitempty"`
	Config *config.Config `json:"config"`
}

func newConfigCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or print the configuration",
	}
	cmd.AddCommand(newConfigInitCmd(st), newConfigShowCmd(st))
	return cmd
}

func newConfigInitCmd(st *state) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPathTOML
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &UsageError{Message: fmt.Sprintf("%s already exists; pass --force to overwrite", path)}
			}

			cfg := config.Default()
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			st.app.Logger.Info("wrote configuration")

			w := cmd.OutOrStdout()
			if st.jsonMode {
				return NewJSONResponse("config init", ConfigData{Path: path, Config: cfg}).Write(w)
			}
			fmt.Fprintf(w, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := st.app.Config
			w := cmd.OutOrStdout()
			if st.jsonMode {
				return NewJSONResponse("config show", ConfigData{Config: cfg}).Write(w)
			}
			data, err := cfg.TOML()
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
}
