package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-test/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)
		assert.Equal(t, 256, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"안녕"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/", "secret", "2024-02-01", "gpt-test", time.Second)
	resp, err := c.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 256, 0.1)
	require.NoError(t, err)

	content, err := resp.Content()
	require.NoError(t, err)
	assert.Equal(t, "안녕", content)
}

func TestChatCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"429","message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "secret", "2024-02-01", "gpt-test", time.Second)
	_, err := c.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 16, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}

func TestChatCompletionWithoutKey(t *testing.T) {
	c := NewOpenAIClient("http://localhost", "", "v", "d", time.Second)
	_, err := c.ChatCompletion(context.Background(), nil, 16, 0)
	assert.Error(t, err)
}

func TestEmptyChoices(t *testing.T) {
	var resp ChatCompletionResponse
	_, err := resp.Content()
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
