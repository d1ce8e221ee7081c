package vectorstore

import "context"

// VectorStore is a technology-agnostic interface for vector similarity search
// over the advisory knowledge base.
type VectorStore interface {
	// Search performs vector similarity search with optional filtering.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// Close releases any resources held by the vector store.
	Close() error
}

// SearchFilter defines filtering options for vector search.
type SearchFilter struct {
	// Topics restricts results to knowledge tagged with any of these
	// intents (e.g. "crop_advice", "loan_help").
	Topics []string

	// Language restricts results to one language code.
	Language string

	// Metadata filters results by additional payload key-value pairs.
	Metadata map[string]any

	// MinScore drops results below this similarity (0.0-1.0).
	MinScore float32
}

// SearchResult is a single knowledge chunk returned by a search.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Topic    string
	Language string
	Metadata map[string]any
}
