package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/store"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs in the results directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenFileStore(resultsDir)
			if err != nil {
				return fmt.Errorf("opening results store: %w", err)
			}

			runs, err := st.ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			fmt.Printf("%-36s  %-10s  %-12s  %-9s  %-11s  %s\n",
				"RUN ID", "PROVIDER", "BENCHMARK", "STATUS", "EVALUATED", "ACCURACY")
			for _, run := range runs {
				accuracy := "n/a"
				if a, ok := run.Summary.Accuracy(); ok {
					accuracy = fmt.Sprintf("%.1f%%", a*100)
				}
				fmt.Printf("%-36s  %-10s  %-12s  %-9s  %5d/%-5d  %s\n",
					run.RunID, run.Provider, run.Benchmark, run.Status,
					run.Summary.Evaluated, run.Summary.Total, accuracy)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", ".membench", "Directory for run state and results")
	return cmd
}
