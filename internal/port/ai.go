package port

import (
	"context"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

// Embedder turns text into fixed-length vectors.
// Implementations can target OpenAI, Ollama, or a local model.
type Embedder interface {
	// ModelName returns the identifier of the embedding model.
	ModelName() string

	// Dimension returns the fixed length of every vector the model produces.
	Dimension() int

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatOptions are the fixed sampling settings sent with every completion.
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
}

// ChatModel abstracts the language-model backend used to answer questions.
type ChatModel interface {
	// ModelName returns the identifier of the chat model.
	ModelName() string

	// ChatStream starts a completion and streams the answer piece by piece.
	// The channel is closed when the answer ends; a delta with Err set is
	// always the last value sent. Cancelling ctx aborts the upstream call.
	ChatStream(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (<-chan domain.StreamDelta, error)
}
