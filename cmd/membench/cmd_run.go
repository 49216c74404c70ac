package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/providers"
	"github.com/membench/membench/internal/runmanager"
	"github.com/membench/membench/internal/store"
)

var (
	resultsDir  string
	continueID  string
	runID       string
	verbose     bool
	workersFlag int
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <benchmark.yaml>",
		Short: "Run a benchmark against a memory provider",
		Long: `Run a benchmark from a config file.

The config file names the provider, the benchmark type, the dataset file, the
answering and judge models, and execution settings. Results are written to the
results directory as the run progresses, so an interrupted run can be resumed
with --continue.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", ".membench", "Directory for run state and results")
	cmd.Flags().StringVar(&continueID, "continue", "", "Resume a stopped or failed run by ID (no config file needed)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run ID for a new run (overrides config, default: random UUID)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with per-phase progress")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Number of concurrent workers (overrides config)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	st, err := store.OpenFileStore(resultsDir)
	if err != nil {
		return fmt.Errorf("opening results store: %w", err)
	}

	client, err := llm.NewOpenAIClientFromEnv()
	if err != nil {
		return err
	}

	manager := runmanager.New(st, providers.DefaultRegistry(client), client, nil)
	if verbose {
		manager.OnProgress(verboseProgressListener)
	} else {
		manager.OnProgress(simpleProgressListener)
	}

	// First Ctrl-C requests a cooperative stop; a second one aborts.
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var run *models.Run
	if continueID != "" {
		run, err = manager.Continue(ctx, continueID)
		if err != nil {
			return fmt.Errorf("continuing run %s: %w", continueID, err)
		}
	} else {
		if len(args) != 1 {
			return fmt.Errorf("a benchmark config file is required (or use --continue <run-id>)")
		}
		cfg, err := models.LoadBenchmarkConfig(args[0])
		if err != nil {
			return err
		}
		if workersFlag > 0 {
			cfg.Workers = workersFlag
		}
		if runID != "" {
			cfg.RunID = runID
		}

		benchmark, err := dataset.Load(cfg.Dataset)
		if err != nil {
			return err
		}
		if benchmark.Type != cfg.Benchmark {
			return fmt.Errorf("dataset %s is a %q benchmark, config expects %q",
				cfg.Dataset, benchmark.Type, cfg.Benchmark)
		}

		fmt.Printf("Running benchmark: %s\n", benchmark.Name)
		fmt.Printf("Provider: %s\n", cfg.Provider)
		fmt.Printf("Answering model: %s\n", cfg.AnsweringModel)
		fmt.Printf("Judge model: %s\n", cfg.JudgeModel)
		fmt.Printf("Workers: %d\n", cfg.Workers)
		fmt.Println()

		run, err = manager.Start(ctx, runmanager.StartConfig{
			RunID:          cfg.RunID,
			Provider:       cfg.Provider,
			Benchmark:      benchmark,
			JudgeModel:     cfg.JudgeModel,
			AnsweringModel: cfg.AnsweringModel,
			Settings:       cfg.RunConfig(),
		})
		if err != nil {
			return fmt.Errorf("starting run: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nstopping run (finishing in-flight phases, Ctrl-C again to abort)...")
		_ = manager.Stop(run.RunID)
		<-sigCh
		os.Exit(ExitError)
	}()

	manager.Wait(run.RunID)

	final, err := manager.GetSummary(run.RunID)
	if err != nil {
		return fmt.Errorf("reading final run state: %w", err)
	}

	printRunSummary(final)

	switch final.Status {
	case models.StatusFailed:
		failed := final.Summary.Total - final.Summary.Evaluated
		return &RunFailureError{
			Message: fmt.Sprintf("run %s failed with %d unevaluated question(s); resume with --continue %s",
				final.RunID, failed, final.RunID),
		}
	case models.StatusStopped:
		fmt.Printf("Run stopped. Resume with: membench run --continue %s\n", final.RunID)
	}
	return nil
}

func verboseProgressListener(event runmanager.Event) {
	switch event.Type {
	case runmanager.EventRunStart:
		fmt.Printf("Run %s started\n", event.RunID)
	case runmanager.EventPhaseComplete:
		fmt.Printf("  [%s] %s\n", event.Phase, event.QuestionID)
	case runmanager.EventQuestionFailed:
		fmt.Printf("✗ %s failed\n", event.QuestionID)
	case runmanager.EventRunComplete:
		fmt.Printf("Run %s finished: %s\n", event.RunID, event.Status)
	}
}

func simpleProgressListener(event runmanager.Event) {
	switch event.Type {
	case runmanager.EventPhaseComplete:
		if event.Phase == models.PhaseEvaluate {
			fmt.Printf("✓ %s\n", event.QuestionID)
		}
	case runmanager.EventQuestionFailed:
		fmt.Printf("✗ %s\n", event.QuestionID)
	}
}

func printRunSummary(run *models.Run) {
	fmt.Println()
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" RUN RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	s := run.Summary
	fmt.Printf("Run ID:     %s\n", run.RunID)
	fmt.Printf("Status:     %s\n", run.Status)
	fmt.Printf("Questions:  %d\n", s.Total)
	fmt.Printf("Ingested:   %d\n", s.Ingested)
	fmt.Printf("Indexed:    %d\n", s.Indexed)
	fmt.Printf("Searched:   %d\n", s.Searched)
	fmt.Printf("Answered:   %d\n", s.Answered)
	fmt.Printf("Evaluated:  %d\n", s.Evaluated)
	fmt.Printf("Correct:    %d\n", s.EvaluatedCorrect)

	if accuracy, ok := s.Accuracy(); ok {
		fmt.Printf("Accuracy:   %.1f%%\n", accuracy*100)
	} else {
		fmt.Printf("Accuracy:   n/a (no questions evaluated)\n")
	}
	fmt.Println()
}
