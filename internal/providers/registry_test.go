package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/llm"
)

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("nope", nil)
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(nil)
	assert.Equal(t, []string{"naive"}, r.Names())

	adapter, err := r.Create("naive", map[string]any{"top_k": 3})
	require.NoError(t, err)
	assert.Equal(t, "naive", adapter.Name())

	_, err = r.Create("embedding", nil)
	assert.Error(t, err, "embedding is only registered with an embedder")
}

func TestDefaultRegistryWithEmbedder(t *testing.T) {
	r := DefaultRegistry(&llm.FakeEmbedder{})
	assert.ElementsMatch(t, []string{"naive", "embedding"}, r.Names())

	adapter, err := r.Create("embedding", nil)
	require.NoError(t, err)
	assert.Equal(t, "embedding", adapter.Name())
}

func TestRegistryBadParams(t *testing.T) {
	r := DefaultRegistry(nil)
	_, err := r.Create("naive", map[string]any{"top_k": "not a number"})
	assert.Error(t, err)
}
