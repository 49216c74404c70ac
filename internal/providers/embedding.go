package providers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/prompts"
)

// embeddingParams are the provider parameters for the embedding adapter.
type embeddingParams struct {
	TopK  int    `mapstructure:"top_k"`
	Model string `mapstructure:"model"`
}

// EmbeddingAdapter ranks passages by cosine similarity of embedding vectors.
// Ingested passages are buffered until FlushIndex embeds and commits them,
// so this adapter exercises the full ingest/index split. It supports only
// the "rag" benchmark kind.
type EmbeddingAdapter struct {
	embedder llm.Embedder
	topK     int
	model    string

	mu        sync.Mutex
	pending   map[string][]taggedDoc
	committed map[string][]vectorEntry
}

type vectorEntry struct {
	doc    taggedDoc
	vector []float32
}

// NewEmbeddingAdapter builds an embedding adapter from registry parameters.
func NewEmbeddingAdapter(embedder llm.Embedder, params map[string]any) (Adapter, error) {
	var p embeddingParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, err
	}
	if p.TopK <= 0 {
		p.TopK = 5
	}
	if p.Model == "" {
		p.Model = "text-embedding-3-small"
	}
	return &EmbeddingAdapter{
		embedder:  embedder,
		topK:      p.TopK,
		model:     p.Model,
		pending:   make(map[string][]taggedDoc),
		committed: make(map[string][]vectorEntry),
	}, nil
}

func (a *EmbeddingAdapter) Name() string { return "embedding" }

func (a *EmbeddingAdapter) Prepare(benchmarkType string, items []dataset.Item) ([]PreparedQuestion, error) {
	if benchmarkType != "rag" {
		return nil, &UnsupportedBenchmarkError{Adapter: a.Name(), BenchmarkType: benchmarkType}
	}

	prepared := make([]PreparedQuestion, 0, len(items))
	for _, item := range items {
		prepared = append(prepared, PreparedQuestion{
			QuestionID:   item.ID,
			Question:     item.Question,
			GroundTruth:  item.ExpectedAnswer,
			QuestionType: item.QuestionType,
			Contexts:     append([]string(nil), item.Documents...),
		})
	}
	return prepared, nil
}

func (a *EmbeddingAdapter) AddContext(_ context.Context, tag, data string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[tag] = append(a.pending[tag], taggedDoc{text: data})
	return nil
}

// FlushIndex embeds all pending passages for the tag in one batch and makes
// them searchable. Embedding failures are transient: the batch stays pending
// and the next attempt retries it whole.
func (a *EmbeddingAdapter) FlushIndex(ctx context.Context, tag string) error {
	a.mu.Lock()
	batch := a.pending[tag]
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	inputs := make([]string, len(batch))
	for i, d := range batch {
		inputs[i] = d.text
	}
	vectors, err := a.embedder.Embed(ctx, a.model, inputs)
	if err != nil {
		return Transient(fmt.Errorf("embedding batch for %s: %w", tag, err))
	}

	entries := make([]vectorEntry, len(batch))
	for i := range batch {
		entries[i] = vectorEntry{doc: batch[i], vector: vectors[i]}
	}

	a.mu.Lock()
	a.committed[tag] = append(a.committed[tag], entries...)
	delete(a.pending, tag)
	a.mu.Unlock()
	return nil
}

func (a *EmbeddingAdapter) SearchQuery(ctx context.Context, tag, query string) ([]models.SearchResult, error) {
	queryVectors, err := a.embedder.Embed(ctx, a.model, []string{query})
	if err != nil {
		return nil, Transient(fmt.Errorf("embedding query: %w", err))
	}
	queryVec := queryVectors[0]

	a.mu.Lock()
	entries := a.committed[tag]
	a.mu.Unlock()

	type scored struct {
		entry vectorEntry
		score float64
	}
	hits := make([]scored, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, scored{entry: e, score: cosine(queryVec, e.vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > a.topK {
		hits = hits[:a.topK]
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.SearchResult{
			Text:     h.entry.doc.text,
			Score:    h.score,
			Metadata: h.entry.doc.metadata,
		})
	}
	return results, nil
}

// BuildAnswerPrompt overrides the default answer prompt with the
// timestamp-aware variant.
func (a *EmbeddingAdapter) BuildAnswerPrompt(question string, results []models.SearchResult) string {
	return prompts.TemporalAnswer(question, results)
}

func cosine(a1, b []float32) float64 {
	var dot, na, nb float64
	n := len(a1)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a1[i]) * float64(b[i])
		na += float64(a1[i]) * float64(a1[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ Adapter             = (*EmbeddingAdapter)(nil)
	_ IndexFinalizer      = (*EmbeddingAdapter)(nil)
	_ AnswerPromptBuilder = (*EmbeddingAdapter)(nil)
)
