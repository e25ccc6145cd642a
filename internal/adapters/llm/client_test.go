package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/longregen/parallelproof/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	c := NewClient(Options{
		BaseURL:     url + "/v1",
		APIKey:      "secret",
		Model:       "test-model",
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	})
	c.retryConfig.InitialInterval = time.Millisecond
	c.retryConfig.MaxInterval = time.Millisecond
	return c
}

func chatReply(content string) string {
	resp := map[string]any{
		"id": "c1",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestClient_GenerateRequestsJSONMode(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(chatReply("```json\n{\"improvement\": \"40%\"}\n```")))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "optimize this")
	require.NoError(t, err)

	assert.Contains(t, out, `"improvement": "40%"`)
	assert.Equal(t, "test-model", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "optimize this", got.Messages[1].Content)
}

func TestClient_GenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(chatReply(`{"ok": true}`)))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GenerateClientErrorIsGenerationKind(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, domain.KindGeneration, domain.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GenerateEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatReply("   ")))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestClient_RateLimiterHonorsContext(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1", Model: "m", RateLimitPerMinute: 1})
	// drain the single token
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, "p")
	assert.Equal(t, domain.KindGeneration, domain.KindOf(err))
}
