package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"jan-server/services/session-api/internal/utils/platformerrors"
)

func TestCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "req-9", r.Header.Get("X-Request-Id"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4", req.Model)
		assert.Equal(t, 2000, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "hi"}}},
			Usage:   openai.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
		})
	}))
	defer server.Close()

	client := NewChatCompletionClient(resty.New(), "test", server.URL+"/v1/")
	ctx := platformerrors.WithRequestID(context.Background(), "req-9")

	resp, err := client.CreateChatCompletion(ctx, "sk-test", openai.ChatCompletionRequest{Model: "gpt-4", MaxTokens: 2000})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestCreateChatCompletionErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer server.Close()

	client := NewChatCompletionClient(resty.New(), "test", server.URL)
	_, err := client.CreateChatCompletion(context.Background(), "", openai.ChatCompletionRequest{Model: "gpt-4"})

	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEndpoint(t *testing.T) {
	c := NewChatCompletionClient(resty.New(), "test", " https://api.example.com/v1/ ")
	assert.Equal(t, "https://api.example.com/v1/chat/completions", c.endpoint("/chat/completions"))
	assert.Equal(t, "https://api.example.com/v1/models", c.endpoint("models"))
}
