package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/leaderboard"
	"github.com/membench/membench/internal/store"
)

func newLeaderboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the provider leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board := leaderboard.NewBoard(filepath.Join(resultsDir, "leaderboard.json"))
			entries, err := board.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Leaderboard is empty. Add a completed run with 'membench leaderboard add <run-id>'.")
				return nil
			}

			fmt.Printf("%-4s  %-10s  %-12s  %-9s  %-11s  %s\n",
				"RANK", "PROVIDER", "BENCHMARK", "ACCURACY", "EVALUATED", "RUN ID")
			for i, e := range entries {
				fmt.Printf("%-4d  %-10s  %-12s  %7.1f%%  %5d/%-5d  %s\n",
					i+1, e.Provider, e.Benchmark, e.Accuracy*100, e.Evaluated, e.Total, e.RunID)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&resultsDir, "results-dir", ".membench", "Directory for run state and results")
	cmd.AddCommand(newLeaderboardAddCommand())
	return cmd
}

func newLeaderboardAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <run-id>",
		Short: "Add a completed run to the leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenFileStore(resultsDir)
			if err != nil {
				return fmt.Errorf("opening results store: %w", err)
			}
			run, err := st.GetRun(args[0])
			if err != nil {
				return err
			}

			board := leaderboard.NewBoard(filepath.Join(resultsDir, "leaderboard.json"))
			entry, err := board.Add(run)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s: %s on %s at %.1f%%\n",
				entry.RunID, entry.Provider, entry.Benchmark, entry.Accuracy*100)
			return nil
		},
	}
}
