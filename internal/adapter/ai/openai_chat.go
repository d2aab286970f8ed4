package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// OpenAIChatConfig configures the OpenAI-compatible chat model.
type OpenAIChatConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIChat streams completions through the eino OpenAI chat model.
type OpenAIChat struct {
	model string
	cm    model.BaseChatModel
}

var _ port.ChatModel = (*OpenAIChat)(nil)

// NewOpenAIChat builds the eino chat model.
func NewOpenAIChat(ctx context.Context, cfg OpenAIChatConfig) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai chat: missing API key")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	return &OpenAIChat{model: cfg.Model, cm: cm}, nil
}

// ModelName returns the chat model identifier.
func (o *OpenAIChat) ModelName() string { return o.model }

// ChatStream starts a streaming completion and forwards each content chunk.
func (o *OpenAIChat) ChatStream(ctx context.Context, messages []domain.ChatMessage, opts port.ChatOptions) (<-chan domain.StreamDelta, error) {
	sr, err := o.cm.Stream(ctx, toSchemaMessages(messages),
		model.WithTemperature(opts.Temperature),
		model.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	ch := make(chan domain.StreamDelta, 64)
	go func() {
		defer close(ch)
		defer sr.Close()
		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, ch, domain.StreamDelta{Err: fmt.Errorf("openai stream: %w", err)})
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			if !send(ctx, ch, domain.StreamDelta{Text: msg.Content}) {
				return
			}
		}
	}()
	return ch, nil
}

func toSchemaMessages(messages []domain.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		role := schema.User
		switch m.Role {
		case domain.RoleSystem:
			role = schema.System
		case domain.RoleAssistant:
			role = schema.Assistant
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}
