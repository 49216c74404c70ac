// Package llm abstracts the chat-completion and embedding calls the pipeline
// makes, so any OpenAI-compatible backend can serve as answering model, judge
// model, or embedder.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Client issues a single chat completion against a named model.
type Client interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// Embedder produces one embedding vector per input string.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// OpenAIClient talks to an OpenAI-compatible API. It implements both Client
// and Embedder.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client from explicit settings. An empty baseURL
// keeps the library default endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// NewOpenAIClientFromEnv reads MEMBENCH_API_KEY and MEMBENCH_BASE_URL,
// falling back to OPENAI_API_KEY.
func NewOpenAIClientFromEnv() (*OpenAIClient, error) {
	key := os.Getenv("MEMBENCH_API_KEY")
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("no API key set: export MEMBENCH_API_KEY or OPENAI_API_KEY")
	}
	return NewOpenAIClient(key, os.Getenv("MEMBENCH_BASE_URL")), nil
}

func (c *OpenAIClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): empty response", model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings (%s): %w", model, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings (%s): got %d vectors for %d inputs", model, len(resp.Data), len(inputs))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

var (
	_ Client   = (*OpenAIClient)(nil)
	_ Embedder = (*OpenAIClient)(nil)
)

// IsRetryable reports whether a model call failed in a way another attempt
// could fix: timeouts, connection errors, rate limits, and server-side 5xx.
// Auth rejections, bad requests, and unknown models are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	// Connection-level failures surface as a url.Error with no status code.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
