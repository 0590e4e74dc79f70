package driven

import "context"

// LLMService provides language model completions.
// This is an optional service - when nil, query expansion, reranking,
// answer synthesis, and LLM metadata extraction are disabled and the
// application degrades gracefully to plain hybrid retrieval.
//
// Prompt construction lives in the core services; implementations only
// move text to and from the model.
//
// Implementations may include:
//   - Anthropic (Claude)
//   - OpenAI (GPT-4, GPT-4o-mini)
type LLMService interface {
	// Complete produces a text completion for the prompt.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompleteOptions configures text generation behaviour.
type CompleteOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// System is an optional system prompt.
	System string
}
