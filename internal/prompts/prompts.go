// Package prompts builds the LLM prompts used across the pipeline. Every
// function here is a pure string construction: no state, no randomness, no
// network. Identical inputs always yield byte-identical prompts, which keeps
// runs reproducible and the functions trivially testable.
package prompts

import (
	"fmt"
	"strings"

	"github.com/membench/membench/internal/models"
)

// AnswerSystem is the system message used for answer generation.
const AnswerSystem = "You are a question-answering assistant. Answer using only the provided passages. Be concise and state the answer directly."

// DocumentSummary instructs the model to summarize a raw document, pulling
// out the details retrieval later depends on.
func DocumentSummary(document string) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following document. Extract key figures, temporal data (dates, times, durations), and salient details. Keep every concrete fact; drop filler.\n\n")
	sb.WriteString("<document>\n")
	sb.WriteString(document)
	sb.WriteString("\n</document>\n")
	return sb.String()
}

// ChunkEnhancement instructs the model to enrich a chunk's local summary with
// document-level context, the contextual-retrieval pattern: without it, a
// chunk indexed on its own loses meaning that lived elsewhere in the document.
func ChunkEnhancement(documentSummary, chunk string) string {
	var sb strings.Builder
	sb.WriteString("Below is a summary of a full document, followed by one chunk of that document. Rewrite the chunk as a self-contained passage: resolve pronouns and references using the document summary, and prepend any document-level context (who, when, where) the chunk needs to stand alone. Do not invent facts.\n\n")
	sb.WriteString("<document_summary>\n")
	sb.WriteString(documentSummary)
	sb.WriteString("\n</document_summary>\n\n")
	sb.WriteString("<chunk>\n")
	sb.WriteString(chunk)
	sb.WriteString("\n</chunk>\n")
	return sb.String()
}

// GenerateQuestions instructs the model to synthesize benchmark questions
// from a chunk. Used for dataset construction, not by the scoring pipeline.
func GenerateQuestions(chunk string, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate exactly %d benchmark question(s) from the passage below. Cover key figures, temporal data, and salient details. For each question, also provide the ground-truth answer found verbatim or derivable from the passage.\n\n", count)
	sb.WriteString("Respond as a JSON array of objects with fields \"question\" and \"answer\".\n\n")
	sb.WriteString("<passage>\n")
	sb.WriteString(chunk)
	sb.WriteString("\n</passage>\n")
	return sb.String()
}

// DefaultAnswer is the answer-generation prompt used when a provider adapter
// does not override it. Passages are presented in the provider's relevance
// order, most relevant first.
func DefaultAnswer(question string, results []models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using the passages below. Passages are ordered by relevance, most relevant first; prefer earlier passages when they conflict. If the passages do not contain the answer, say so.\n\n")
	writePassages(&sb, results)
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}

// TemporalAnswer is an answer prompt variant for providers whose results
// carry timestamps. It adds temporal-reasoning instructions on top of the
// default ordering rules.
func TemporalAnswer(question string, results []models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using the passages below. Passages are ordered by relevance, most relevant first. Each passage may carry a timestamp; when the question involves time (what happened first, most recently, on a given date), reason from the timestamps rather than passage order.\n\n")
	writePassages(&sb, results)
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}

// Judge builds the evaluation prompt comparing a generated hypothesis
// against the ground truth.
func Judge(question, groundTruth, hypothesis string) string {
	var sb strings.Builder
	sb.WriteString("You are judging whether a generated answer is correct.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nGround truth: ")
	sb.WriteString(groundTruth)
	sb.WriteString("\nGenerated answer: ")
	sb.WriteString(hypothesis)
	sb.WriteString("\n\nThe generated answer is correct if it conveys the same fact as the ground truth, even with different wording. Extra detail is fine; contradiction or omission of the asked-for fact is incorrect.\n\n")
	sb.WriteString("Respond with a single JSON object: {\"label\": \"correct\" | \"incorrect\", \"explanation\": \"<one or two sentences>\"}\n")
	return sb.String()
}

func writePassages(sb *strings.Builder, results []models.SearchResult) {
	if len(results) == 0 {
		sb.WriteString("(no passages retrieved)\n")
		return
	}
	for i, r := range results {
		fmt.Fprintf(sb, "[%d]", i+1)
		if ts, ok := r.Metadata["timestamp"]; ok {
			fmt.Fprintf(sb, " (%s)", ts)
		}
		sb.WriteString(" ")
		sb.WriteString(r.Text)
		sb.WriteString("\n")
	}
}
