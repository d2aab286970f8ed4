package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// ChatService answers questions with retrieved portfolio context.
type ChatService struct {
	model     port.ChatModel
	retrieval *RetrievalService
	prompts   *PromptBuilder
	opts      port.ChatOptions
}

// NewChatService creates a chat service with fixed sampling options.
func NewChatService(model port.ChatModel, retrieval *RetrievalService, prompts *PromptBuilder, opts port.ChatOptions) *ChatService {
	return &ChatService{model: model, retrieval: retrieval, prompts: prompts, opts: opts}
}

// StreamAnswer retrieves context for the latest user message and streams the
// model's answer. Client-supplied system messages are dropped; the server
// prompt always comes first. The returned contexts are the passages used.
func (s *ChatService) StreamAnswer(ctx context.Context, messages []domain.ChatMessage) (<-chan domain.StreamDelta, []domain.RetrievedContext, error) {
	if err := validateMessages(messages); err != nil {
		return nil, nil, err
	}
	question := messages[len(messages)-1].Content

	contexts := s.retrieval.Retrieve(ctx, question, 0)
	slog.Info("chat request", "turns", len(messages), "contexts", len(contexts))

	full := make([]domain.ChatMessage, 0, len(messages)+1)
	full = append(full, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: s.prompts.BuildSystemPrompt(contexts, question),
	})
	for _, m := range messages {
		if m.Role != domain.RoleSystem {
			full = append(full, m)
		}
	}

	upstream, err := s.model.ChatStream(ctx, full, s.opts)
	if err != nil {
		return nil, nil, &port.UpstreamError{Op: "chat completion", Err: err}
	}

	out := make(chan domain.StreamDelta)
	go func() {
		defer close(out)
		for d := range upstream {
			if d.Err != nil {
				d.Err = &port.UpstreamError{Op: "chat stream", Err: d.Err}
			}
			select {
			case out <- d:
			case <-ctx.Done():
				// drain so the producer can exit
				for range upstream {
				}
				return
			}
		}
	}()
	return out, contexts, nil
}

func validateMessages(messages []domain.ChatMessage) error {
	if len(messages) == 0 {
		return port.Validationf("Invalid request format")
	}
	for i, m := range messages {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
		default:
			return port.Validationf("Invalid role %q in message %d", m.Role, i)
		}
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleUser || strings.TrimSpace(last.Content) == "" {
		return port.Validationf("No user message found")
	}
	return nil
}
