package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/longregen/parallelproof/internal/adapters/circuitbreaker"
	"github.com/longregen/parallelproof/internal/adapters/retry"
	"github.com/longregen/parallelproof/internal/domain"
	"golang.org/x/time/rate"
)

const systemPrompt = "You are an expert software performance engineer. Respond only with a single JSON object."

// ChatMessage represents a message in the OpenAI chat format
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest represents the request to the chat completions API
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse represents the response from the chat completions API
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Options configures a Client.
type Options struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxTokens          int
	Temperature        float64
	RateLimitPerMinute int // 0 disables limiting
	Timeout            time.Duration
	Logger             *slog.Logger
}

// Client is an OpenAI-compatible generation client that asks for JSON output.
// Calls share one rate limiter and one circuit breaker across all agents.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new generation client
func NewClient(opts Options) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimitPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RateLimitPerMinute)), opts.RateLimitPerMinute)
	}

	c := &Client{
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
		limiter:     limiter,
		logger:      logger.With("component", "llm"),
	}
	c.retryConfig.OnRetry = func(attempt int, err error) {
		c.logger.Warn("generation request failed, retrying", "attempt", attempt, "error", err)
	}
	return c
}

// Breaker exposes the circuit breaker so callers can observe its state.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Generate sends prompt as a single user message and returns the assistant
// text unmodified. Fence stripping and decoding are left to the caller.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", domain.Wrap(domain.KindGeneration, "generate", err)
	}

	var content string
	err := c.breaker.Execute(func() error {
		resp, err := c.chat(ctx, []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return domain.ErrEmptyResponse
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return domain.ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrEmptyResponse) && !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		return "", domain.Wrap(domain.KindGeneration, "generate", err)
	}
	return content, nil
}

func (c *Client) chat(ctx context.Context, messages []ChatMessage) (*ChatCompletionResponse, error) {
	req := ChatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		Stream:         false,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
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
			return resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &retry.StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	var response ChatCompletionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
