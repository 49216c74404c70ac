package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/store"
)

func newShowCommand() *cobra.Command {
	var showQuestions bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's summary and question detail",
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
			printRunSummary(run)

			if !showQuestions {
				return nil
			}
			questions, err := st.Questions(run.RunID)
			if err != nil {
				return err
			}
			for _, q := range questions {
				printQuestion(q)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", ".membench", "Directory for run state and results")
	cmd.Flags().BoolVar(&showQuestions, "questions", false, "Include per-question phase detail")
	return cmd
}

func printQuestion(q *models.Question) {
	icon := "…"
	switch {
	case q.Complete():
		icon = "✓"
		if v := q.Phases[models.PhaseEvaluate]; v != nil && v.Verdict != nil && v.Verdict.Label != models.LabelCorrect {
			icon = "✗"
		}
	case q.FailedPhase != "":
		icon = "!"
	}

	fmt.Printf("%s %s  %s\n", icon, q.QuestionID, q.Question)
	if q.FailedPhase != "" {
		fmt.Printf("    failed at %s: %s\n", q.FailedPhase, q.LastError)
	}
	if answer := q.Phases[models.PhaseAnswer]; answer != nil {
		fmt.Printf("    answer:   %s\n", answer.Hypothesis)
	}
	if eval := q.Phases[models.PhaseEvaluate]; eval != nil && eval.Verdict != nil {
		fmt.Printf("    verdict:  %s (%s)\n", eval.Verdict.Label, eval.Verdict.Explanation)
	}
}
