package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

func drain(t *testing.T, ch <-chan domain.StreamDelta) (string, error) {
	t.Helper()
	var sb strings.Builder
	for d := range ch {
		if d.Err != nil {
			return sb.String(), d.Err
		}
		sb.WriteString(d.Text)
	}
	return sb.String(), nil
}

func TestOllamaProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req struct {
			Model string `json:"model"`
			Input any    `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-m3", req.Model)

		switch in := req.Input.(type) {
		case string:
			if in == "fail" {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"embeddings":[[0.1,0.2]]}`)
		case []any:
			if len(in) == 3 {
				fmt.Fprint(w, `{"embeddings":[[1,0]]}`)
				return
			}
			fmt.Fprint(w, `{"embeddings":[[1,0],[0,1]]}`)
		}
	}))
	defer srv.Close()

	o := NewOllamaProvider(OllamaEndpointConfig{BaseURL: srv.URL, Model: "bge-m3", Token: "tok"}, OllamaEndpointConfig{}, 2, time.Second)
	ctx := context.Background()

	t.Run("single", func(t *testing.T) {
		v, err := o.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2}, v)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		v, err := o.EmbedBatch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, v)
	})

	t.Run("short batch response", func(t *testing.T) {
		_, err := o.EmbedBatch(ctx, []string{"a", "b", "c"})
		var embErr *port.EmbeddingError
		assert.ErrorAs(t, err, &embErr)
	})

	t.Run("upstream failure", func(t *testing.T) {
		_, err := o.Embed(ctx, "fail")
		assert.ErrorIs(t, err, port.ErrUpstream)
		assert.Contains(t, err.Error(), "model not loaded")
	})
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	t.Run("streams message chunks", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Messages []domain.ChatMessage `json:"messages"`
				Stream   bool                 `json:"stream"`
				Options  map[string]any       `json:"options"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Stream)
			assert.Len(t, req.Messages, 2)
			assert.InDelta(t, 0.7, req.Options["temperature"], 1e-6)
			assert.EqualValues(t, 1000, req.Options["num_predict"])

			fmt.Fprintln(w, `{"message":{"content":"Hel"},"done":false}`)
			fmt.Fprintln(w, `{"message":{"content":"lo"},"done":false}`)
			fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
		}))
		defer srv.Close()

		o := NewOllamaProvider(OllamaEndpointConfig{}, OllamaEndpointConfig{BaseURL: srv.URL, Model: "qwen3"}, 2, time.Second)
		ch, err := o.ChatStream(context.Background(), []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "be nice"},
			{Role: domain.RoleUser, Content: "hi"},
		}, port.ChatOptions{Temperature: 0.7, MaxTokens: 1000})
		require.NoError(t, err)

		text, err := drain(t, ch)
		require.NoError(t, err)
		assert.Equal(t, "Hello", text)
	})

	t.Run("error line ends the stream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"message":{"content":"par"}}`)
			fmt.Fprintln(w, `{"error":"out of memory"}`)
		}))
		defer srv.Close()

		o := NewOllamaProvider(OllamaEndpointConfig{}, OllamaEndpointConfig{BaseURL: srv.URL}, 2, time.Second)
		ch, err := o.ChatStream(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, port.ChatOptions{})
		require.NoError(t, err)
		text, err := drain(t, ch)
		assert.Equal(t, "par", text)
		assert.ErrorContains(t, err, "out of memory")
	})

	t.Run("non-200 fails before streaming", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such model", http.StatusNotFound)
		}))
		defer srv.Close()

		o := NewOllamaProvider(OllamaEndpointConfig{}, OllamaEndpointConfig{BaseURL: srv.URL}, 2, time.Second)
		_, err := o.ChatStream(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, port.ChatOptions{})
		assert.ErrorContains(t, err, "no such model")
	})
}
