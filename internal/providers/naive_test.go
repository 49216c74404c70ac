package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/dataset"
)

func TestNaiveAdapterPrepare(t *testing.T) {
	adapter, err := NewNaiveAdapter(nil)
	require.NoError(t, err)

	items := []dataset.Item{
		{ID: "q-1", Question: "What color is the sky?", ExpectedAnswer: "Blue", Documents: []string{"The sky is blue."}},
		{ID: "q-2", Question: "Who wrote it?", ExpectedAnswer: "Dana"},
	}

	prepared, err := adapter.Prepare("rag", items)
	require.NoError(t, err)
	require.Len(t, prepared, len(items), "prepare is count-preserving")
	assert.Equal(t, "q-1", prepared[0].QuestionID)
	assert.Equal(t, "Blue", prepared[0].GroundTruth)
	assert.Equal(t, []string{"The sky is blue."}, prepared[0].Contexts)
	assert.Empty(t, prepared[1].Contexts)
}

func TestNaiveAdapterPrepareChatPrependsTimestamps(t *testing.T) {
	adapter, err := NewNaiveAdapter(nil)
	require.NoError(t, err)

	prepared, err := adapter.Prepare("chat", []dataset.Item{
		{
			ID:             "q-1",
			Question:       "When was X born?",
			ExpectedAnswer: "2005",
			Documents:      []string{"X was born in Y."},
			Metadata:       map[string]string{"timestamp": "04/22/2005 3:00 PM"},
		},
	})
	require.NoError(t, err)
	require.Len(t, prepared, 1)
	assert.Equal(t, []string{"04/22/2005 3:00 PM: X was born in Y."}, prepared[0].Contexts)
}

func TestNaiveAdapterPrepareUnsupportedType(t *testing.T) {
	adapter, err := NewNaiveAdapter(nil)
	require.NoError(t, err)

	_, err = adapter.Prepare("graph", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedBenchmark)

	var ube *UnsupportedBenchmarkError
	require.True(t, errors.As(err, &ube))
	assert.Equal(t, "naive", ube.Adapter)
	assert.Equal(t, "graph", ube.BenchmarkType)
}

func TestNaiveAdapterSearchRanking(t *testing.T) {
	adapter, err := NewNaiveAdapter(map[string]any{"top_k": 2})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, adapter.AddContext(ctx, "tag-1", "the capital of france is paris"))
	require.NoError(t, adapter.AddContext(ctx, "tag-1", "bananas are yellow fruit"))
	require.NoError(t, adapter.AddContext(ctx, "tag-1", "paris hosts the louvre"))

	results, err := adapter.SearchQuery(ctx, "tag-1", "what is the capital of france")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2, "top_k bounds the result list")
	assert.Equal(t, "the capital of france is paris", results[0].Text)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestNaiveAdapterSearchIsolatesTags(t *testing.T) {
	adapter, err := NewNaiveAdapter(nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, adapter.AddContext(ctx, "tag-1", "the sky is blue"))

	results, err := adapter.SearchQuery(ctx, "tag-2", "sky color blue")
	require.NoError(t, err)
	assert.Empty(t, results, "contexts under another tag are invisible")
}

func TestNaiveAdapterEmptySearchIsValid(t *testing.T) {
	adapter, err := NewNaiveAdapter(nil)
	require.NoError(t, err)

	results, err := adapter.SearchQuery(context.Background(), "tag-1", "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}
