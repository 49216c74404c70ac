package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeneratedQA(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{
			name:     "clean array",
			response: `[{"question": "Who?", "answer": "Dana"}, {"question": "When?", "answer": "2005"}]`,
			want:     2,
		},
		{
			name:     "code fence",
			response: "```json\n[{\"question\": \"Who?\", \"answer\": \"Dana\"}]\n```",
			want:     1,
		},
		{
			name:     "surrounding prose",
			response: `Here you go: [{"question": "Who?", "answer": "Dana"}] enjoy!`,
			want:     1,
		},
		{
			name:     "no array",
			response: "I could not generate questions.",
			wantErr:  true,
		},
		{
			name:     "empty array",
			response: "[]",
			wantErr:  true,
		},
		{
			name:     "missing answer",
			response: `[{"question": "Who?"}]`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := parseGeneratedQA(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, pairs, tt.want)
		})
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "stop", "list", "show", "delete", "serve", "generate", "leaderboard"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.True(t, root.SilenceUsage)
}
