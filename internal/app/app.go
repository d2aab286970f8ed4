// Package app wires configuration into the adapters and services shared by
// the HTTP server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/portfolio-assistant/internal/adapter/ai"
	"github.com/arturoeanton/portfolio-assistant/internal/adapter/store"
	"github.com/arturoeanton/portfolio-assistant/internal/middleware"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
	"github.com/arturoeanton/portfolio-assistant/pkg/config"
)

// Components holds everything built from a Config.
type Components struct {
	Config    *config.Config
	Persona   service.Persona
	Embedder  port.Embedder
	Store     port.VectorStore
	Registry  port.DocumentRegistry
	Postgres  *store.PostgresStore
	Docs      *service.DocumentService
	Retrieval *service.RetrievalService

	closers []func() error
}

// Build creates the embedder, vector store, optional registry, and the
// document and retrieval services. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{Config: cfg}
	if err := c.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context) error {
	cfg := c.Config

	persona, err := service.LoadPersona(cfg.PersonaFile, cfg.PortfolioName)
	if err != nil {
		return err
	}
	c.Persona = persona

	c.Embedder, err = c.newEmbedder()
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}

	c.Store, err = c.newVectorStore(ctx)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}

	if cfg.RegistryPath != "" {
		reg, err := store.NewBoltRegistry(cfg.RegistryPath)
		if err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		c.Registry = reg
		c.closers = append(c.closers, reg.Close)
	}

	c.Docs, err = service.NewDocumentService(c.Embedder, c.Store, c.Registry, service.DocumentConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		ListTopK:     cfg.ListTopK,
		DeleteTopK:   cfg.DeleteTopK,
		BatchEmbed:   cfg.EmbedBatch,
		EmbedDelay:   cfg.EmbedDelay(),
	})
	if err != nil {
		return err
	}

	c.Retrieval = service.NewRetrievalService(c.Embedder, c.Store, persona, service.RetrievalConfig{
		TopK:              cfg.RetrievalTopK,
		FallbackThreshold: cfg.RetrievalFallbackThreshold,
	})
	return nil
}

func (c *Components) newEmbedder() (port.Embedder, error) {
	cfg := c.Config
	switch cfg.EmbedProvider {
	case "openai":
		return ai.NewOpenAIEmbedder(ai.OpenAIEmbedConfig{
			BaseURL:   cfg.OpenAIBaseURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
			Timeout:   cfg.UpstreamTimeout(),
		})
	case "ollama":
		return c.ollama(), nil
	case "local":
		l, err := ai.NewLocalEmbedder(cfg.LocalEmbedModel, cfg.LocalModelDir, cfg.EmbeddingDimension)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, l.Close)
		return l, nil
	}
	return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.EmbedProvider)
}

func (c *Components) ollama() *ai.OllamaProvider {
	cfg := c.Config
	return ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{BaseURL: cfg.OllamaBaseURL, Model: cfg.OllamaEmbedModel, Token: cfg.OllamaToken},
		ai.OllamaEndpointConfig{BaseURL: cfg.OllamaBaseURL, Model: cfg.OllamaChatModel, Token: cfg.OllamaToken},
		cfg.EmbeddingDimension,
		cfg.UpstreamTimeout(),
	)
}

func (c *Components) newVectorStore(ctx context.Context) (port.VectorStore, error) {
	cfg := c.Config
	switch cfg.VectorStore {
	case "memory":
		slog.Warn("using in-memory vector store; documents are lost on restart")
		return store.NewMemoryVectorStore(cfg.VectorNamespace), nil
	case "pgvector":
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.Postgres = pg
		c.closers = append(c.closers, pg.Close)
		v := store.NewPGVectorStore(pg, cfg.VectorIndexName, cfg.VectorNamespace, cfg.EmbeddingDimension)
		if err := v.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return v, nil
	case "qdrant":
		q := store.NewQdrantStore(store.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.VectorIndexName,
			Namespace:  cfg.VectorNamespace,
			Dimension:  cfg.EmbeddingDimension,
			Timeout:    cfg.UpstreamTimeout(),
		})
		if err := q.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown VECTOR_STORE %q", cfg.VectorStore)
}

// ChatModel builds the configured chat backend.
func (c *Components) ChatModel(ctx context.Context) (port.ChatModel, error) {
	cfg := c.Config
	switch cfg.ChatProvider {
	case "openai":
		return ai.NewOpenAIChat(ctx, ai.OpenAIChatConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	case "ollama":
		return c.ollama(), nil
	}
	return nil, fmt.Errorf("unknown CHAT_PROVIDER %q", cfg.ChatProvider)
}

// ChatOptions returns the sampling settings for every completion.
func (c *Components) ChatOptions() port.ChatOptions {
	return port.ChatOptions{
		Temperature: float32(c.Config.ChatTemperature),
		MaxTokens:   c.Config.ChatMaxTokens,
	}
}

// TokenConfig returns the admin token settings.
func (c *Components) TokenConfig() middleware.TokenConfig {
	return middleware.TokenConfig{
		Secret:    c.Config.AdminTokenSecret,
		Issuer:    c.Config.AppName,
		ExpiresIn: c.Config.AdminTokenExpiry(),
		Required:  c.Config.AdminRequireToken,
	}
}

// AuditWriter persists audit records to Postgres when a connection is open
// and to the structured log otherwise.
func (c *Components) AuditWriter(ctx context.Context) (middleware.AuditWriter, error) {
	if c.Postgres == nil {
		return middleware.LogAuditWriter{Logger: slog.Default()}, nil
	}
	if err := c.Postgres.EnsureAuditSchema(ctx); err != nil {
		return nil, err
	}
	return c.Postgres, nil
}

// Close releases resources in reverse creation order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
