package knowledge_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/krishi/knowledge"
	"github.com/creastat/krishi/vectorstore"
)

type stubEmbedder struct {
	err   error
	texts []string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubStore struct {
	results []vectorstore.SearchResult
	err     error
	filter  vectorstore.SearchFilter
	limit   int
	closed  bool
}

func (s *stubStore) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	s.filter, s.limit = filter, limit
	return s.results, s.err
}

func (s *stubStore) Close() error {
	s.closed = true
	return nil
}

func TestRetriever_Lookup(t *testing.T) {
	emb := &stubEmbedder{}
	store := &stubStore{results: []vectorstore.SearchResult{
		{Content: "  गेहूं की बुवाई नवंबर में करें  "},
		{Content: ""},
		{Content: strings.Repeat("क", 400)},
	}}
	r := knowledge.NewRetriever(emb, store, knowledge.WithLimit(5), knowledge.WithMinScore(0.5))

	got, err := r.Lookup(context.Background(), knowledge.Query{Text: "फसल", Language: "hi", Topic: "crop_advice"})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "गेहूं की बुवाई नवंबर में करें", got[0])
	assert.Equal(t, 281, utf8.RuneCountInString(got[1]))

	assert.Equal(t, []string{"फसल"}, emb.texts)
	assert.Equal(t, 5, store.limit)
	assert.Equal(t, []string{"crop_advice"}, store.filter.Topics)
	assert.Equal(t, "hi", store.filter.Language)
	assert.InDelta(t, 0.5, store.filter.MinScore, 1e-6)

	require.NoError(t, r.Close())
	assert.True(t, store.closed)
}

func TestRetriever_EmptyQuerySkipsLookup(t *testing.T) {
	emb := &stubEmbedder{}
	r := knowledge.NewRetriever(emb, &stubStore{})

	got, err := r.Lookup(context.Background(), knowledge.Query{Text: "   "})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, emb.texts)
}

func TestRetriever_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := knowledge.NewRetriever(&stubEmbedder{err: boom}, &stubStore{}).
		Lookup(context.Background(), knowledge.Query{Text: "loan"})
	assert.ErrorIs(t, err, boom)

	_, err = knowledge.NewRetriever(&stubEmbedder{}, &stubStore{err: boom}).
		Lookup(context.Background(), knowledge.Query{Text: "loan"})
	assert.ErrorIs(t, err, boom)
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := knowledge.NewOpenAIEmbedder(knowledge.OpenAIConfig{})
	assert.Error(t, err)

	e, err := knowledge.NewOpenAIEmbedder(knowledge.OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
