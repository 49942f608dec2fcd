package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/snipvault/pkg/types"
)

func embeddingsServer(t *testing.T, status int, vectors [][]float32) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		data := make([]map[string]interface{}, len(vectors))
		// Reverse the order to check index-based reassembly.
		for i := range vectors {
			j := len(vectors) - 1 - i
			data[i] = map[string]interface{}{"object": "embedding", "index": j, "embedding": vectors[j]}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  body.Model,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestOpenAIProvider(t *testing.T) {
	srv, paths := embeddingsServer(t, http.StatusOK, [][]float32{{0.1, 0.2}, {0.3, 0.4}})

	p, err := NewOpenAIProvider("test-key", "", srv.URL+"/v1")
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, resp.Embeddings[0].Vector)
	assert.Equal(t, []float32{0.3, 0.4}, resp.Embeddings[1].Vector)
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, DefaultOpenAIModel, resp.Model)
	assert.Equal(t, []string{"/v1/embeddings"}, *paths)
}

func TestJinaProvider(t *testing.T) {
	srv, _ := embeddingsServer(t, http.StatusOK, [][]float32{{1, 0}})

	p, err := NewJinaProvider("test-key", "", srv.URL)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, emb.Vector)
	assert.Equal(t, ProviderJina, emb.Provider)
	assert.Equal(t, DefaultJinaModel, emb.Model)
	assert.Equal(t, JinaDimension, p.Dimension())
}

func TestOpenAIProviderErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAIProvider("", "", "")
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("server error", func(t *testing.T) {
		srv, _ := embeddingsServer(t, http.StatusInternalServerError, nil)
		p, err := NewOpenAIProvider("test-key", "", srv.URL)
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.ErrorIs(t, err, types.ErrProvider)
	})

	t.Run("short response", func(t *testing.T) {
		srv, _ := embeddingsServer(t, http.StatusOK, [][]float32{{1}})
		p, err := NewOpenAIProvider("test-key", "", srv.URL)
		require.NoError(t, err)

		_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
		assert.ErrorIs(t, err, types.ErrProvider)
	})
}
