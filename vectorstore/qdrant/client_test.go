package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/krishi/vectorstore"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		raw    string
		host   string
		port   int
		useTLS bool
	}{
		{"localhost", "localhost", 6334, false},
		{"http://qdrant:6335", "qdrant", 6335, false},
		{"https://xyz.cloud.qdrant.io:6334", "xyz.cloud.qdrant.io", 6334, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, useTLS, err := parseAddress(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.useTLS, useTLS)
		})
	}

	_, _, _, err := parseAddress("http://qdrant:grpc")
	assert.Error(t, err)
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(vectorstore.SearchFilter{}))

	f := buildFilter(vectorstore.SearchFilter{
		Topics:   []string{"crop_advice"},
		Language: "hi",
		Metadata: map[string]any{"state": "Punjab"},
	})
	require.NotNil(t, f)
	require.Len(t, f.Must, 3)

	keys := make([]string, 0, 3)
	for _, c := range f.Must {
		keys = append(keys, c.GetField().GetKey())
	}
	assert.ElementsMatch(t, []string{"topic", "language", "state"}, keys)

	multi := buildFilter(vectorstore.SearchFilter{Topics: []string{"crop_advice", "loan_help"}})
	require.Len(t, multi.Must, 1)
	kws := multi.Must[0].GetField().GetMatch().GetKeywords().GetStrings()
	assert.Equal(t, []string{"crop_advice", "loan_help"}, kws)
}

func TestExtractValue(t *testing.T) {
	assert.Equal(t, "x", extractValue(qdrant.NewValueString("x")))
	assert.Equal(t, int64(4), extractValue(qdrant.NewValueInt(4)))
	assert.Equal(t, true, extractValue(qdrant.NewValueBool(true)))
	assert.Nil(t, extractValue(nil))
}
