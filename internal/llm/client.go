// Package llm is the last-resort categorization tier: it asks an external
// text-generation API for a category when rules and embeddings both fail.
// Its trust is bounded; parsed confidences are always clamped to [0.5, 0.9].
package llm

import "context"

// Client defines the contract for chat-style LLM providers.
type Client interface {
	// Complete sends a system+user prompt pair and returns the raw text of
	// the first completion.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder defines the contract for embedding endpoints. Embedding
// generation is only ever invoked by background workers, never during
// categorization.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds provider configuration. Credentials, quotas and model
// selection are external concerns passed in here.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	EmbeddingModel    string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
}
