package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"

	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// LocalEmbedder runs a sentence-transformer model in-process with hugot.
type LocalEmbedder struct {
	model     string
	dimension int

	mu      sync.Mutex
	run     func([]string) ([][]float32, error)
	destroy func() error
}

var _ port.Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder loads modelName from modelDir, downloading it on first use.
func NewLocalEmbedder(modelName, modelDir string, dimension int) (*LocalEmbedder, error) {
	modelPath, err := prepareModel(modelName, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "portfolio-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	return &LocalEmbedder{
		model:     modelName,
		dimension: dimension,
		run: func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		destroy: session.Destroy,
	}, nil
}

// prepareModel downloads the model if it doesn't exist and returns its path.
func prepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat model: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(modelName, modelDir, opts)
	if err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	return downloaded, nil
}

// ModelName returns the model identifier.
func (l *LocalEmbedder) ModelName() string { return l.model }

// Dimension returns the configured vector length.
func (l *LocalEmbedder) Dimension() int { return l.dimension }

// Embed embeds a single text.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in order. The pipeline is not safe for concurrent use.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	out, err := l.run(texts)
	l.mu.Unlock()
	if err != nil {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("local model: %w", err)}
	}
	if len(out) != len(texts) {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("local model: got %d embeddings for %d inputs", len(out), len(texts))}
	}
	for i, v := range out {
		if l.dimension > 0 && len(v) != l.dimension {
			return nil, &port.EmbeddingError{Err: fmt.Errorf("local model: vector %d has dimension %d, want %d", i, len(v), l.dimension)}
		}
	}
	return out, nil
}

// Close releases the hugot session.
func (l *LocalEmbedder) Close() error {
	if l.destroy == nil {
		return nil
	}
	return l.destroy()
}
