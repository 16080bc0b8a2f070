package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-ada-002"
)

// embeddingModels lists the names the pinned client can put on the wire.
// Its EmbeddingModel is an enum, so anything else would serialise as "".
var embeddingModels = map[string]openai.EmbeddingModel{
	"text-embedding-ada-002": openai.AdaEmbeddingV2,
}

// ParseEmbeddingModel resolves a configured embedding model name.
func ParseEmbeddingModel(name string) (openai.EmbeddingModel, error) {
	if m, ok := embeddingModels[name]; ok {
		return m, nil
	}
	return openai.Unknown, fmt.Errorf("unsupported embedding model %q", name)
}

// ErrEmptyResponse is returned when the provider answers without any choice or vector.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client wraps the OpenAI API behind a circuit breaker with retries.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	temperature    float32
	timeout        time.Duration
	retry          RetryConfig
	cb             *gobreaker.CircuitBreaker
}

type ClientConfig struct {
	APIKey         string
	BaseURL        string // optional, for proxies and tests
	Model          string
	EmbeddingModel string
	Temperature    float64
	Timeout        time.Duration
	MaxRetries     int
}

func NewClient(apiKey string) *Client {
	return NewClientWithConfig(ClientConfig{APIKey: apiKey})
}

func NewClientWithConfig(cfg ClientConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	embeddingModel, err := ParseEmbeddingModel(cfg.EmbeddingModel)
	if err != nil {
		logger.WithError(err).Warn("[LLMClient] falling back to %s", DefaultEmbeddingModel)
		embeddingModel = openai.AdaEmbeddingV2
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	cbSettings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("[CircuitBreaker] state changed")
		},
	}

	return &Client{
		client:         openai.NewClientWithConfig(oc),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    float32(cfg.Temperature),
		timeout:        timeout,
		retry:          retry,
		cb:             gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// Model returns the chat model name.
func (c *Client) Model() string { return c.model }

// CompleteJSON sends one system and one user message and asks for a JSON object back.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := call(ctx, c, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: c.embeddingModel,
		Input: []string{text},
	}

	resp, err := call(ctx, c, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}

// call runs fn under the breaker, retrying transient failures with backoff.
// Each attempt gets its own timeout.
func call[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	out, err := c.cb.Execute(func() (interface{}, error) {
		return retryWithBackoff(ctx, c.retry, isRetryable, func() (T, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return fn(attemptCtx)
		})
	})
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

// isRetryable reports whether err is worth another attempt: rate limiting,
// server errors and transport failures are, request errors are not.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}
