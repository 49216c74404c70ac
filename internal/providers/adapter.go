// Package providers defines the uniform capability surface every memory/RAG
// backend exposes to the pipeline, plus a registry of concrete adapters
// keyed by provider name.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/models"
)

// ErrUnsupportedBenchmark is returned by Prepare for benchmark kinds an
// adapter does not implement. Fatal for the question set, not retryable.
var ErrUnsupportedBenchmark = errors.New("benchmark type not supported by adapter")

// UnsupportedBenchmarkError reports which adapter rejected which benchmark
// kind. It matches ErrUnsupportedBenchmark under errors.Is.
type UnsupportedBenchmarkError struct {
	Adapter       string
	BenchmarkType string
}

func (e *UnsupportedBenchmarkError) Error() string {
	return fmt.Sprintf("adapter %q does not support benchmark type %q", e.Adapter, e.BenchmarkType)
}

func (e *UnsupportedBenchmarkError) Unwrap() error { return ErrUnsupportedBenchmark }

// TransientError marks a provider failure as retryable: network errors,
// timeouts, backend overload. Adapters wrap such failures so the executor
// can tell them apart from permanent ones.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried. Deadline expiry on an
// external call counts as transient even when the adapter didn't wrap it.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// PreparedQuestion is one benchmark item normalized into the adapter's own
// context/query representation. Prepare maps every input item to exactly one
// of these.
type PreparedQuestion struct {
	QuestionID   string
	Question     string
	GroundTruth  string
	QuestionType string

	// Contexts are the units of material the adapter ingests for this
	// question, one AddContext call each.
	Contexts []string
}

// Adapter is the capability contract a provider backend implements. Adapters
// are stateless with respect to runs: the container tag is the only
// correlation between a call and the question it serves.
type Adapter interface {
	// Name returns the registry name this adapter was created under.
	Name() string

	// Prepare transforms a benchmark dataset's native records into the
	// adapter's own representation. It must be count-preserving and fail
	// with ErrUnsupportedBenchmark for benchmark kinds it does not handle.
	Prepare(benchmarkType string, items []dataset.Item) ([]PreparedQuestion, error)

	// AddContext ingests one unit of context material under a container tag.
	AddContext(ctx context.Context, tag, data string) error

	// SearchQuery returns passages relevant to the query, ordered by
	// provider-reported relevance. An empty result list is a valid answer.
	SearchQuery(ctx context.Context, tag, query string) ([]models.SearchResult, error)
}

// IndexFinalizer is implemented by adapters with a separate indexing step
// (commit/flush) that makes ingested content searchable. Adapters without
// one skip the interface and the index phase records an empty marker.
type IndexFinalizer interface {
	FlushIndex(ctx context.Context, tag string) error
}

// AnswerPromptBuilder is implemented by adapters that override the default
// answer-generation prompt (e.g. to add timestamp-aware instructions). The
// phase execution contract is identical either way.
type AnswerPromptBuilder interface {
	BuildAnswerPrompt(question string, results []models.SearchResult) string
}
