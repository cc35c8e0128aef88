package ai

import (
	"context"

	"github.com/rotisserie/eris"
)

// Message is one turn of a conversation sent to an Oracle.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion. JSONMode asks the backend for one JSON object.
type Options struct {
	JSONMode    bool
	Temperature *float64
	MaxTokens   int
}

// Oracle is the text capability behind classification, semantic scoring,
// justification and extraction.
type Oracle interface {
	Complete(ctx context.Context, system string, messages []Message, opts Options) (string, error)
}

// Embedder is implemented by backends that can produce vector embeddings.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an Oracle backend.
type Config struct {
	Provider       string
	OllamaURL      string
	GenModel       string
	EmbedModel     string
	AnthropicKey   string
	AnthropicModel string
}

// NewOracle builds the backend named by cfg.Provider.
func NewOracle(cfg Config) (Oracle, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaClient(cfg.OllamaURL, cfg.EmbedModel, cfg.GenModel), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("ai: anthropic provider requires an api key")
		}
		return NewAnthropicOracle(cfg.AnthropicKey, cfg.AnthropicModel), nil
	}
	return nil, eris.Errorf("ai: unknown oracle provider %q", cfg.Provider)
}

// Temperature returns a pointer for Options.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// UserPrompt wraps a single user turn.
func UserPrompt(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}
