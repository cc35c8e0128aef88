package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete_SendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "0.8"}, Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "", "test-model")
	resp, err := client.Complete(context.Background(), "system", UserPrompt("ocen"), Options{
		JSONMode:    true,
		Temperature: Temperature(0.3),
		MaxTokens:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.8", resp)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.Options)
	assert.Equal(t, 10, got.Options.NumPredict)
	assert.InDelta(t, 0.3, *got.Options.Temperature, 1e-9)
}

func TestOllamaComplete_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "", "").Complete(context.Background(), "", UserPrompt("x"), Options{})
	assert.Error(t, err)
}

func TestOllamaEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	vec, err := NewOllamaClient(srv.URL, "", "").GenerateEmbedding(context.Background(), "tekst")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestNewOracle(t *testing.T) {
	o, err := NewOracle(Config{Provider: "ollama"})
	require.NoError(t, err)
	_, isEmbedder := o.(Embedder)
	assert.True(t, isEmbedder)

	_, err = NewOracle(Config{Provider: "anthropic"})
	assert.Error(t, err)

	a, err := NewOracle(Config{Provider: "anthropic", AnthropicKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicOracle{}, a)

	_, err = NewOracle(Config{Provider: "gpt"})
	assert.Error(t, err)
}
