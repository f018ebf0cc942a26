// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/config"
	"github.com/jeranaias/hybridqa/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// state is shared by the root command and its children. The App is built
// in PersistentPreRunE, after flags are parsed.
type state struct {
	configPath string
	verbose    bool
	jsonMode   bool

	app *App

	// logOutput overrides the logger destination; tests point it at a file.
	logOutput []string
	// wire, when set, may replace App members before any command runs.
	wire func(*App)
}

func (s *state) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if s.configPath != "" {
		cfg, err = config.LoadFromPath(s.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return &ConfigError{Err: err}
	}

	opts := cfg.LogOptions()
	if s.verbose {
		opts.Level = "debug"
	}
	opts.OutputPaths = s.logOutput
	logger, err := logging.New(opts)
	if err != nil {
		return &ConfigError{Err: err}
	}
	logger = logger.With(zap.String("command", cmd.Name()))

	s.app = NewApp(cfg, logger)
	if s.wire != nil {
		s.wire(s.app)
	}
	return nil
}

func (s *state) close() {
	if s.app != nil {
		_ = s.app.Logger.Sync()
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&state{})
}

func newRootCmd(st *state) *cobra.Command {
	root := &cobra.Command{
		Use:   "hybridqa",
		Short: "Hybrid SQL/RAG question answering over Korean university data",
		Long: `hybridqa routes each question to one of three answer paths:

  structured      text-to-SQL over the university_info table
  retrieval       answers grounded in indexed policy documents
  conversational  a plain model answer

Keyword heuristics pick the path when they can; otherwise the model classifies.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&st.configPath, "config", "c", "", "config file (default ./hybridqa.toml or ./hybridqa.json)")
	flags.BoolVarP(&st.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&st.jsonMode, "json", false, "print JSON output")

	root.AddCommand(
		newServeCmd(st),
		newAskCmd(st),
		newClassifyCmd(st),
		newIngestCmd(st),
		newIndexCmd(st),
		newHistoryCmd(st),
		newStatusCmd(st),
		newBenchCmd(st),
		newConfigCmd(st),
	)
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, &state{})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, st *state) int {
	root := newRootCmd(st)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	st.close()
	if err != nil {
		DisplayError(stdout, stderr, err, st.jsonMode)
		return ExitCode(err)
	}
	return ExitSuccess
}
