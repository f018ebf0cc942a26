// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/server"
)

func newServeCmd(st *state) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  hybridqa serve
  hybridqa serve --port 9000
  curl -s localhost:8000/chat -d '{"query":"국가장학금 신청 절차가 뭐야?"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := st.app
			if host != "" {
				app.Config.Server.Host = host
			}
			if port > 0 {
				app.Config.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, app *App) error {
	rt, err := app.Router()
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	chatlog, err := app.ChatLog(ctx)
	if err != nil {
		return err
	}
	opts := []server.Option{
		server.WithBackend(app.Client),
		server.WithLogger(app.Logger),
	}
	if chatlog != nil {
		defer chatlog.Close()
		opts = append(opts, server.WithChatLog(chatlog))
	}

	srv := server.New(rt, app.Config.Server, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := time.Duration(app.Config.Server.ShutdownTimeoutSecs) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err := <-errCh; err != nil {
		return err
	}
	app.Logger.Info("server stopped", zap.Int64("requests", srv.Stats().Snapshot().TotalRequests))
	return nil
}
