package driven

import "context"

// ConfigStore provides application configuration access.
// Backed by a TOML file with dot-notation keys.
type ConfigStore interface {
	// Get retrieves a configuration value by dot-notation key
	// (e.g., "retrieval.top_k"). Returns domain.ErrNotFound when unset.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a configuration value and persists it.
	Set(ctx context.Context, key, value string) error

	// All returns every configured key-value pair.
	All(ctx context.Context) (map[string]string, error)
}
