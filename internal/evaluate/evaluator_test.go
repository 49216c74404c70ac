package evaluate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.VerdictLabel
		wantErr  bool
	}{
		{
			name:     "clean json",
			response: `{"label": "correct", "explanation": "matches the ground truth"}`,
			want:     models.LabelCorrect,
		},
		{
			name:     "incorrect label",
			response: `{"label": "incorrect", "explanation": "contradicts"}`,
			want:     models.LabelIncorrect,
		},
		{
			name:     "code fence",
			response: "```json\n{\"label\": \"correct\", \"explanation\": \"ok\"}\n```",
			want:     models.LabelCorrect,
		},
		{
			name:     "surrounding prose",
			response: `Sure! Here is my verdict: {"label": "correct", "explanation": "fine"} hope that helps`,
			want:     models.LabelCorrect,
		},
		{
			name:     "uppercase label",
			response: `{"label": "CORRECT", "explanation": "x"}`,
			want:     models.LabelCorrect,
		},
		{
			name:     "braces inside strings",
			response: `{"label": "correct", "explanation": "the answer {mostly} matches"}`,
			want:     models.LabelCorrect,
		},
		{
			name:     "no json at all",
			response: "the answer looks right to me",
			wantErr:  true,
		},
		{
			name:     "unknown label",
			response: `{"label": "maybe", "explanation": "unsure"}`,
			wantErr:  true,
		},
		{
			name:     "truncated json",
			response: `{"label": "correct", "explanation": "cut off`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := ParseVerdict(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedJudgeOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict.Label)
		})
	}
}

func TestEvaluateUsesJudgeModel(t *testing.T) {
	client := llm.NewFakeClient("")
	client.Script("judge-1", `{"label": "correct", "explanation": "same fact"}`)

	ev := New(client, "judge-1")
	verdict, err := ev.Evaluate(context.Background(), "Where?", "In Y", "X was born in Y")
	require.NoError(t, err)
	assert.Equal(t, models.LabelCorrect, verdict.Label)
	assert.Equal(t, "same fact", verdict.Explanation)
}

func TestEvaluateJudgeCallFailure(t *testing.T) {
	client := llm.NewFakeClient("")
	client.FailWith("judge-1", errors.New("rate limited"))

	ev := New(client, "judge-1")
	_, err := ev.Evaluate(context.Background(), "q", "t", "h")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedJudgeOutput)
}

func TestEvaluateMalformedJudgeOutput(t *testing.T) {
	client := llm.NewFakeClient("I cannot judge this.")

	ev := New(client, "judge-1")
	_, err := ev.Evaluate(context.Background(), "q", "t", "h")
	assert.ErrorIs(t, err, ErrMalformedJudgeOutput)
}
