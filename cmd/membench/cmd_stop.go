package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStopCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stop <run-id>",
		Short: "Stop a run executing on a membench server",
		Long: `Stop a run executing on a membench server.

This talks to the serve API; a run started with 'membench run' in a terminal
is stopped with Ctrl-C instead. Stopping waits for in-flight phases to finish,
keeps every completed phase result, and leaves the run resumable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/runs/%s/stop", strings.TrimSuffix(addr, "/"), args[0])

			client := &http.Client{Timeout: 60 * time.Second}
			resp, err := client.Post(url, "application/json", nil)
			if err != nil {
				return fmt.Errorf("stopping run: %w", err)
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("stopping run: server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			fmt.Printf("Stopped run %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:3000", "Address of the membench server")
	return cmd
}
