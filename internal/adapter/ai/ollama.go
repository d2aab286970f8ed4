package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// OllamaEndpointConfig holds the configuration for a single Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. bge-m3, qwen3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.Embedder and port.ChatModel using the Ollama REST API.
// Embed and chat may use different endpoints, models, and tokens.
type OllamaProvider struct {
	embed      OllamaEndpointConfig
	chat       OllamaEndpointConfig
	dimension  int
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed provider. timeout bounds
// embedding calls only; chat streams are bounded by the caller's context.
func NewOllamaProvider(embed, chat OllamaEndpointConfig, dimension int, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		embed:      embed,
		chat:       chat,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var (
	_ port.Embedder  = (*OllamaProvider)(nil)
	_ port.ChatModel = (*OllamaProvider)(nil)
)

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

// Dimension returns the configured embedding dimension.
func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

// Embed generates a vector embedding for the given text.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.embedInput(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("ollama: empty response")}
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := o.embedInput(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("ollama: got %d embeddings for %d inputs", len(vectors), len(texts))}
	}
	return vectors, nil
}

func (o *OllamaProvider) embedInput(ctx context.Context, input any) ([][]float32, error) {
	payload := map[string]any{
		"model": o.embed.Model,
		"input": input,
	}

	body, err := o.post(ctx, o.embed, "/api/embed", payload)
	if err != nil {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("ollama: %w", err)}
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("ollama decode: %w", err)}
	}
	return resp.Embeddings, nil
}

// ChatStream sends the conversation and streams the response token-by-token.
func (o *OllamaProvider) ChatStream(ctx context.Context, messages []domain.ChatMessage, opts port.ChatOptions) (<-chan domain.StreamDelta, error) {
	payload := map[string]any{
		"model":    o.chat.Model,
		"messages": messages,
		"stream":   true,
		"options": map[string]any{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama stream: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chat.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("ollama stream: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.chat.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.chat.Token)
	}

	// The shared client's timeout would cut long answers; ctx bounds the stream.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	ch := make(chan domain.StreamDelta, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for decoder.More() {
			var chunk struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
				Done  bool   `json:"done"`
				Error string `json:"error"`
			}
			if err := decoder.Decode(&chunk); err != nil {
				send(ctx, ch, domain.StreamDelta{Err: fmt.Errorf("ollama stream decode: %w", err)})
				return
			}
			if chunk.Error != "" {
				send(ctx, ch, domain.StreamDelta{Err: fmt.Errorf("ollama stream: %s", chunk.Error)})
				return
			}
			if chunk.Message.Content != "" {
				if !send(ctx, ch, domain.StreamDelta{Text: chunk.Message.Content}) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
	}()

	return ch, nil
}

// send delivers d unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- domain.StreamDelta, d domain.StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// post is a helper for POST requests to an Ollama endpoint (with optional bearer token).
func (o *OllamaProvider) post(ctx context.Context, cfg OllamaEndpointConfig, path string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
