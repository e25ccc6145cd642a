package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/longregen/parallelproof/internal/adapters/circuitbreaker"
	"github.com/longregen/parallelproof/internal/adapters/retry"
	"github.com/longregen/parallelproof/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	// EmbeddingTimeout is the maximum time to wait for embedding generation
	EmbeddingTimeout = 30 * time.Second
)

// Client is an OpenAI-compatible embedding client. Concurrent requests for
// the same text share one upstream call, which matters when many agents of
// one task embed the same artifact prefix.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
	group       singleflight.Group
	logger      *slog.Logger
}

// NewClient creates a new embedding client
func NewClient(baseURL, apiKey, model string, dimensions int) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		dimensions:  dimensions,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
		logger:      slog.Default().With("component", "embedding"),
	}
}

// Breaker exposes the circuit breaker so callers can observe its state.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// WithLogger replaces the client's logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger.With("component", "embedding")
	}
	return c
}

// EmbeddingRequest represents the request to the embeddings API
type EmbeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// EmbeddingResponse represents the response from the embeddings API
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed returns the embedding for text. Every failure, including an open
// breaker, is reported as ErrEmbeddingUnavailable of kind retrieval.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err, shared := c.group.Do(text, func() (any, error) {
		var vec []float32
		err := c.breaker.Execute(func() error {
			// detached from the first caller so a cancelled agent does not fail the others
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), EmbeddingTimeout)
			defer cancel()

			var err error
			vec, err = c.embed(callCtx, text)
			return err
		})
		return vec, err
	})
	if err != nil {
		c.logger.Warn("embedding failed", "model", c.model, "text_len", len(text), "error", err)
		return nil, domain.Wrap(domain.KindRetrieval, "embed", fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err))
	}
	if shared {
		c.logger.Debug("embedding shared between callers", "text_len", len(text))
	}

	vec := v.([]float32)
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// GetDimensions returns the dimensionality of the embeddings
func (c *Client) GetDimensions() int {
	return c.dimensions
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(EmbeddingRequest{Input: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
		if err != nil {
			return 0, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return 0, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &retry.StatusError{Code: resp.StatusCode, Body: string(respBody)}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	var embeddingResp EmbeddingResponse
	if err := json.Unmarshal(respBody, &embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	vec := embeddingResp.Data[0].Embedding
	if c.dimensions > 0 && len(vec) != c.dimensions {
		return nil, fmt.Errorf("expected %d dimensions but got %d", c.dimensions, len(vec))
	}
	return vec, nil
}
