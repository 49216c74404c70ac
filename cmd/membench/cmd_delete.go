package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/store"
)

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its question records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenFileStore(resultsDir)
			if err != nil {
				return fmt.Errorf("opening results store: %w", err)
			}
			if err := st.DeleteRun(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", ".membench", "Directory for run state and results")
	return cmd
}
