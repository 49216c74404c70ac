package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDataset = `{
  "name": "tiny-rag",
  "type": "rag",
  "items": [
    {
      "id": "q-1",
      "question": "What color is the sky?",
      "expected_answer": "Blue",
      "documents": ["The sky is blue on a clear day."]
    },
    {
      "question": "Who wrote the report?",
      "expected_answer": "Dana",
      "question_type": "single-hop",
      "metadata": {"timestamp": "04/22/2005 3:00 PM"}
    }
  ]
}`

func TestParseValidDataset(t *testing.T) {
	b, err := Parse([]byte(validDataset))
	require.NoError(t, err)

	assert.Equal(t, "tiny-rag", b.Name)
	assert.Equal(t, "rag", b.Type)
	require.Len(t, b.Items, 2)
	assert.Equal(t, "q-1", b.Items[0].ID)
	assert.Equal(t, []string{"The sky is blue on a clear day."}, b.Items[0].Documents)
	assert.Equal(t, "04/22/2005 3:00 PM", b.Items[1].Metadata["timestamp"])
}

func TestParseFillsMissingItemIDs(t *testing.T) {
	b, err := Parse([]byte(validDataset))
	require.NoError(t, err)
	assert.Equal(t, "item-2", b.Items[1].ID, "items without an id get a positional one")
}

func TestParseRejectsInvalidDatasets(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"missing name", `{"type": "rag", "items": []}`},
		{"missing type", `{"name": "x", "items": []}`},
		{"missing items", `{"name": "x", "type": "rag"}`},
		{"item without question", `{"name": "x", "type": "rag", "items": [{"expected_answer": "y"}]}`},
		{"item without answer", `{"name": "x", "type": "rag", "items": [{"question": "y?"}]}`},
		{"empty question", `{"name": "x", "type": "rag", "items": [{"question": "", "expected_answer": "y"}]}`},
		{"unknown item field", `{"name": "x", "type": "rag", "items": [{"question": "y?", "expected_answer": "y", "bogus": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseSchemaErrorNamesLocation(t *testing.T) {
	_, err := Parse([]byte(`{"name": "x", "type": "rag", "items": [{"expected_answer": "y"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/items/0")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmark.json")
	require.NoError(t, os.WriteFile(path, []byte(validDataset), 0644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny-rag", b.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
