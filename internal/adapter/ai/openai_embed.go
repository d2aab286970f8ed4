package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// OpenAIEmbedConfig configures the OpenAI-compatible embeddings client.
type OpenAIEmbedConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// OpenAIEmbedder calls the /embeddings endpoint of an OpenAI-compatible API.
// Failures are returned as-is; there are no retries.
type OpenAIEmbedder struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

var _ port.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the client, applying defaults for empty fields.
func NewOpenAIEmbedder(cfg OpenAIEmbedConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embeddings: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ModelName returns the embedding model identifier.
func (c *OpenAIEmbedder) ModelName() string { return c.model }

// Dimension returns the configured vector length.
func (c *OpenAIEmbedder) Dimension() int { return c.dimension }

// Embed returns an embedding vector for text.
func (c *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request. The response is reordered by its
// index field so output order matches input order.
func (c *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": texts,
	})
	if err != nil {
		return nil, &port.EmbeddingError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &port.EmbeddingError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &port.EmbeddingError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &port.EmbeddingError{Err: err}
	}
	if resp.StatusCode >= 300 {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("openai embeddings failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))}
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Data) != len(texts) {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("got %d embeddings for %d inputs", len(out.Data), len(texts))}
	}

	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if d.Index != i {
			return nil, &port.EmbeddingError{Err: fmt.Errorf("response indexes are not 0..%d: found %d at position %d", len(texts)-1, d.Index, i)}
		}
		if len(d.Embedding) == 0 {
			return nil, &port.EmbeddingError{Err: fmt.Errorf("response item %d has no embedding", i)}
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
