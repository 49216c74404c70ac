package providers

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/models"
)

// naiveParams are the provider parameters for the naive adapter.
type naiveParams struct {
	TopK int `mapstructure:"top_k"`
}

// NaiveAdapter is a lexical-overlap retriever with no separate index step:
// ingested passages are searchable immediately, so the index phase records
// an empty marker. It exists as the zero-dependency reference backend and
// for exercising the pipeline in tests.
type NaiveAdapter struct {
	topK int

	mu   sync.RWMutex
	docs map[string][]taggedDoc
}

type taggedDoc struct {
	text     string
	metadata map[string]string
}

// NewNaiveAdapter builds a naive adapter from registry parameters.
func NewNaiveAdapter(params map[string]any) (Adapter, error) {
	var p naiveParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, err
	}
	if p.TopK <= 0 {
		p.TopK = 5
	}
	return &NaiveAdapter{topK: p.TopK, docs: make(map[string][]taggedDoc)}, nil
}

func (a *NaiveAdapter) Name() string { return "naive" }

func (a *NaiveAdapter) Prepare(benchmarkType string, items []dataset.Item) ([]PreparedQuestion, error) {
	switch benchmarkType {
	case "rag", "chat":
	default:
		return nil, &UnsupportedBenchmarkError{Adapter: a.Name(), BenchmarkType: benchmarkType}
	}

	prepared := make([]PreparedQuestion, 0, len(items))
	for _, item := range items {
		pq := PreparedQuestion{
			QuestionID:   item.ID,
			Question:     item.Question,
			GroundTruth:  item.ExpectedAnswer,
			QuestionType: item.QuestionType,
		}
		for _, doc := range item.Documents {
			// Chat benchmarks carry session timestamps; fold them into the
			// passage text so lexical search can still surface them.
			if benchmarkType == "chat" {
				if ts, ok := item.Metadata["timestamp"]; ok {
					doc = ts + ": " + doc
				}
			}
			pq.Contexts = append(pq.Contexts, doc)
		}
		prepared = append(prepared, pq)
	}
	return prepared, nil
}

func (a *NaiveAdapter) AddContext(_ context.Context, tag, data string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[tag] = append(a.docs[tag], taggedDoc{text: data})
	return nil
}

func (a *NaiveAdapter) SearchQuery(_ context.Context, tag, query string) ([]models.SearchResult, error) {
	queryTokens := tokenize(query)

	a.mu.RLock()
	docs := a.docs[tag]
	a.mu.RUnlock()

	type scored struct {
		doc   taggedDoc
		score float64
	}
	var hits []scored
	for _, d := range docs {
		s := overlapScore(queryTokens, tokenize(d.text))
		if s > 0 {
			hits = append(hits, scored{doc: d, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > a.topK {
		hits = hits[:a.topK]
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.SearchResult{
			Text:     h.doc.text,
			Score:    h.score,
			Metadata: h.doc.metadata,
		})
	}
	return results, nil
}

func tokenize(s string) map[string]int {
	tokens := make(map[string]int)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) < 2 {
			continue
		}
		tokens[f]++
	}
	return tokens
}

// overlapScore is shared-token count normalized by document length, so long
// passages don't win on volume alone.
func overlapScore(query, doc map[string]int) float64 {
	if len(doc) == 0 {
		return 0
	}
	shared := 0
	for tok := range query {
		if doc[tok] > 0 {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(doc)))
}

var _ Adapter = (*NaiveAdapter)(nil)
