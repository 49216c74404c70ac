package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/leaderboard"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/providers"
	"github.com/membench/membench/internal/runmanager"
	"github.com/membench/membench/internal/store"
	"github.com/membench/membench/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var port int
	var corsOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

The server exposes run inspection and control over REST: list runs, read
per-question phase detail, start, stop, continue, and delete runs, and read
the leaderboard. It binds to loopback only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenFileStore(resultsDir)
			if err != nil {
				return fmt.Errorf("opening results store: %w", err)
			}

			client, err := llm.NewOpenAIClientFromEnv()
			if err != nil {
				return err
			}

			logger := slog.Default()
			manager := runmanager.New(st, providers.DefaultRegistry(client), client, logger)
			board := leaderboard.NewBoard(filepath.Join(resultsDir, "leaderboard.json"))

			server, err := webserver.New(webserver.Config{
				Port:           port,
				Service:        manager,
				Board:          board,
				AllowedOrigins: corsOrigins,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("membench API: http://127.0.0.1:%d/api/runs\n", port)
			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", ".membench", "Directory for run state and results")
	cmd.Flags().IntVar(&port, "port", 3000, "Port to listen on")
	cmd.Flags().StringArrayVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (can be repeated)")
	return cmd
}
