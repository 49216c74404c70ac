package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// FakeClient is a scripted Client implementation for testing. Responses are
// consumed in order per model; when a model's script is exhausted the
// fallback response is returned.
type FakeClient struct {
	mu        sync.Mutex
	scripts   map[string][]string
	errs      map[string]error
	fallback  string
	callCount int
}

// NewFakeClient creates a fake that always answers with fallback.
func NewFakeClient(fallback string) *FakeClient {
	return &FakeClient{
		scripts:  make(map[string][]string),
		errs:     make(map[string]error),
		fallback: fallback,
	}
}

// Script queues ordered responses for a model.
func (f *FakeClient) Script(model string, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[model] = append(f.scripts[model], responses...)
}

// FailWith makes every call for a model return err.
func (f *FakeClient) FailWith(model string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[model] = err
}

// Calls returns how many completions have been requested.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

func (f *FakeClient) Complete(_ context.Context, model, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++

	if err := f.errs[model]; err != nil {
		return "", err
	}
	if queue := f.scripts[model]; len(queue) > 0 {
		resp := queue[0]
		f.scripts[model] = queue[1:]
		return resp, nil
	}
	return f.fallback, nil
}

// FakeEmbedder produces deterministic embeddings from input text, so vector
// adapters can be exercised without a network.
type FakeEmbedder struct {
	Dim int
}

func (f *FakeEmbedder) Embed(_ context.Context, _ string, inputs []string) ([][]float32, error) {
	dim := f.Dim
	if dim <= 0 {
		dim = 8
	}
	vectors := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, dim)
		h := fnv.New32a()
		for j := 0; j < dim; j++ {
			fmt.Fprintf(h, "%s|%d", in, j)
			v[j] = float32(h.Sum32()%1000) / 1000.0
		}
		vectors[i] = v
	}
	return vectors, nil
}

var (
	_ Client   = (*FakeClient)(nil)
	_ Embedder = (*FakeEmbedder)(nil)
)
