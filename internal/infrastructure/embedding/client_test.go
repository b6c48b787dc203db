package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webscout/internal/config"
)

func TestEmbed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var in struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hello", in.Text)

		_ = json.NewEncoder(w).Encode(map[string]any{"vector": []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{Endpoint: srv.URL, APIKey: "secret", TimeoutSeconds: 5})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestEmbedErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Case") {
		case "empty":
			_ = json.NewEncoder(w).Encode(map[string]any{"vector": []float32{}})
		default:
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{Endpoint: srv.URL, TimeoutSeconds: 5})

	_, err := c.Embed(context.Background(), "hello")
	assert.Error(t, err)
}
