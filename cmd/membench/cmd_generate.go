package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/prompts"
)

// generatedQA is one question/answer pair as returned by the model.
type generatedQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func newGenerateCommand() *cobra.Command {
	var (
		count         int
		model         string
		output        string
		benchmarkName string
		benchmarkType string
	)

	cmd := &cobra.Command{
		Use:   "generate <document.txt>",
		Short: "Generate a benchmark dataset from a document",
		Long: `Generate a benchmark dataset from a document.

The document is sent to an LLM which synthesizes question/answer pairs
covering its key facts. The output is a dataset JSON file ready for
'membench run'; each generated question carries the source document so
providers have something to ingest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
			document := string(data)

			client, err := llm.NewOpenAIClientFromEnv()
			if err != nil {
				return err
			}

			fmt.Printf("Generating %d question(s) with %s...\n", count, model)
			response, err := client.Complete(cmd.Context(), model, "", prompts.GenerateQuestions(document, count))
			if err != nil {
				return fmt.Errorf("generating questions: %w", err)
			}

			pairs, err := parseGeneratedQA(response)
			if err != nil {
				return err
			}

			benchmark := dataset.Benchmark{
				Name: benchmarkName,
				Type: benchmarkType,
			}
			for i, qa := range pairs {
				benchmark.Items = append(benchmark.Items, dataset.Item{
					ID:             fmt.Sprintf("item-%d", i+1),
					Question:       qa.Question,
					ExpectedAnswer: qa.Answer,
					Documents:      []string{document},
				})
			}

			out, err := json.MarshalIndent(benchmark, "", "  ")
			if err != nil {
				return err
			}
			// Round-trip through the schema so we never write an invalid dataset.
			if _, err := dataset.Parse(out); err != nil {
				return fmt.Errorf("generated dataset failed validation: %w", err)
			}

			if err := os.WriteFile(output, out, 0644); err != nil {
				return fmt.Errorf("writing dataset: %w", err)
			}
			fmt.Printf("Wrote %d question(s) to %s\n", len(benchmark.Items), output)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of questions to generate")
	cmd.Flags().StringVar(&model, "model", "gpt-4o", "Model used to generate questions")
	cmd.Flags().StringVarP(&output, "output", "o", "benchmark.json", "Output dataset file")
	cmd.Flags().StringVar(&benchmarkName, "name", "generated", "Benchmark name")
	cmd.Flags().StringVar(&benchmarkType, "type", "rag", "Benchmark type")
	return cmd
}

// parseGeneratedQA decodes the model's JSON array, tolerating code fences and
// surrounding prose.
func parseGeneratedQA(response string) ([]generatedQA, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("model response contains no JSON array")
	}

	var pairs []generatedQA
	if err := json.Unmarshal([]byte(response[start:end+1]), &pairs); err != nil {
		return nil, fmt.Errorf("parsing generated questions: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	for i, qa := range pairs {
		if qa.Question == "" || qa.Answer == "" {
			return nil, fmt.Errorf("generated question %d is missing a question or answer", i+1)
		}
	}
	return pairs, nil
}
