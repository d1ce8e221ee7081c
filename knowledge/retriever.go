// Package knowledge looks up short advisory snippets related to a farmer's
// question. It is optional: the chat fallback path attaches the snippets as
// references next to its canned reply when a Retriever is configured.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/creastat/krishi/vectorstore"
)

const (
	defaultLimit    = 3
	defaultMinScore = 0.35
	maxSnippetRunes = 280
	snippetEllipsis = "…"
)

// Retriever embeds a query and searches the knowledge vector store.
type Retriever struct {
	embedder Embedder
	store    vectorstore.VectorStore
	logger   *zap.Logger
	limit    int
	minScore float32
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLimit sets the maximum number of snippets returned.
func WithLimit(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithMinScore drops matches below score.
func WithMinScore(score float32) Option {
	return func(r *Retriever) {
		r.minScore = score
	}
}

// WithLogger sets the retriever logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, store vectorstore.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		logger:   zap.NewNop(),
		limit:    defaultLimit,
		minScore: defaultMinScore,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("knowledge")
	return r
}

// Query is one lookup request.
type Query struct {
	Text     string
	Language string
	Topic    string // optional intent from the keyword classifier
}

// Lookup returns up to the configured number of snippets, best match first.
func (r *Retriever) Lookup(ctx context.Context, q Query) ([]string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("knowledge lookup: %w", err)
	}

	filter := vectorstore.SearchFilter{
		Language: q.Language,
		MinScore: r.minScore,
	}
	if q.Topic != "" {
		filter.Topics = []string{q.Topic}
	}

	results, err := r.store.Search(ctx, vec, filter, r.limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge lookup: %w", err)
	}

	snippets := make([]string, 0, len(results))
	for _, res := range results {
		s := strings.TrimSpace(res.Content)
		if s == "" {
			continue
		}
		snippets = append(snippets, truncate(s, maxSnippetRunes))
	}

	r.logger.Debug("knowledge lookup",
		zap.String("topic", q.Topic),
		zap.Int("results", len(results)),
		zap.Int("snippets", len(snippets)))

	return snippets, nil
}

// Close closes the underlying vector store.
func (r *Retriever) Close() error {
	return r.store.Close()
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + snippetEllipsis
}
