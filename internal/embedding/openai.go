package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kensaku/pkg/utils"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder calls the OpenAI embeddings API. Transient failures
// (rate limits, 5xx, transport errors) are retried with backoff.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	retry      RetryConfig
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	baseURL string
	retry   RetryConfig
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) OpenAIOption {
	return func(o *openAIOptions) { o.retry = cfg }
}

// NewOpenAIEmbedder creates an embedder requesting vectors of the given
// dimensions from model.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	o := openAIOptions{retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
		retry:      o.retry,
	}, nil
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}
	resp, err := retryWithBackoff(ctx, e.retry, func() (openai.EmbeddingResponse, error) {
		r, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil && !retryable(err) {
			return r, permanent(err)
		}
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		utils.NormalizeL2(v)
		out[d.Index] = v
	}
	return out, nil
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Dimensions returns the requested embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for OpenAIEmbedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
