// Package evaluate judges generated answers against ground truth using an
// LLM judge model.
package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/prompts"
)

// ErrMalformedJudgeOutput is returned when the judge model's response cannot
// be parsed into a verdict. Callers retry it like any transient failure.
var ErrMalformedJudgeOutput = errors.New("malformed judge output")

const judgeSystem = "You are a strict but fair evaluation judge. Always respond with the requested JSON object and nothing else."

// Evaluator compares hypotheses against ground truth via a judge model.
type Evaluator struct {
	client llm.Client
	model  string
}

// New creates an evaluator using the given judge model.
func New(client llm.Client, model string) *Evaluator {
	return &Evaluator{client: client, model: model}
}

// Evaluate asks the judge whether the hypothesis answers the question
// correctly, returning a binary label plus explanation.
func (e *Evaluator) Evaluate(ctx context.Context, question, groundTruth, hypothesis string) (*models.Verdict, error) {
	prompt := prompts.Judge(question, groundTruth, hypothesis)

	resp, err := e.client.Complete(ctx, e.model, judgeSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("judge call: %w", err)
	}

	verdict, err := ParseVerdict(resp)
	if err != nil {
		return nil, err
	}
	return verdict, nil
}

// ParseVerdict extracts the structured verdict from a judge response.
// Tolerates surrounding prose and markdown code fences; anything without a
// parseable JSON object carrying a valid label is ErrMalformedJudgeOutput.
func ParseVerdict(response string) (*models.Verdict, error) {
	payload := extractJSONObject(response)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedJudgeOutput)
	}

	var raw struct {
		Label       string `json:"label"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJudgeOutput, err)
	}

	label := models.VerdictLabel(strings.ToLower(strings.TrimSpace(raw.Label)))
	switch label {
	case models.LabelCorrect, models.LabelIncorrect:
	default:
		return nil, fmt.Errorf("%w: unrecognized label %q", ErrMalformedJudgeOutput, raw.Label)
	}

	return &models.Verdict{Label: label, Explanation: raw.Explanation}, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// or "" when there is none.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
