// Package dataset loads benchmark dataset files in their native JSON schema.
// Files are validated against an embedded JSON Schema before any provider
// sees them, so adapters can assume structurally sound input.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema.json
var benchmarkSchemaJSON []byte

// defaultPrinter formats schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

var benchmarkSchema *jsonschema.Schema

func init() {
	var doc any
	if err := json.Unmarshal(benchmarkSchemaJSON, &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded benchmark schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("benchmark.schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add benchmark schema resource: %v", err))
	}

	sch, err := compiler.Compile("benchmark.schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile benchmark schema: %v", err))
	}
	benchmarkSchema = sch
}

// Item is one record in a benchmark dataset's native form.
type Item struct {
	ID             string            `json:"id,omitempty"`
	Question       string            `json:"question"`
	Documents      []string          `json:"documents,omitempty"`
	ExpectedAnswer string            `json:"expected_answer"`
	QuestionType   string            `json:"question_type,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Benchmark is a named dataset of a particular benchmark kind.
type Benchmark struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Items []Item `json:"items"`
}

// Load reads and validates a benchmark dataset file.
func Load(path string) (*Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return Parse(data)
}

// Parse validates raw dataset bytes against the schema and decodes them.
func Parse(data []byte) (*Benchmark, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}

	if err := benchmarkSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("dataset schema validation failed:\n%s", formatSchemaError(err))
	}

	var b Benchmark
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}

	// Fill stable per-row IDs for items that don't carry one.
	for i := range b.Items {
		if b.Items[i].ID == "" {
			b.Items[i].ID = fmt.Sprintf("item-%d", i+1)
		}
	}

	return &b, nil
}

func formatSchemaError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return strings.Join(errs, "\n")
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, errs)
	}
}
