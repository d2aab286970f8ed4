package service

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

const noContext = "No relevant context found in knowledge base."

// PromptBuilder renders the system prompt sent ahead of the conversation.
type PromptBuilder struct {
	persona Persona
}

// NewPromptBuilder creates a builder for persona.
func NewPromptBuilder(persona Persona) *PromptBuilder {
	return &PromptBuilder{persona: persona}
}

// BuildSystemPrompt concatenates the identity line, the ranked context block,
// the behavioural instructions, and the question.
func (b *PromptBuilder) BuildSystemPrompt(contexts []domain.RetrievedContext, question string) string {
	var sb strings.Builder

	sb.WriteString(b.persona.render(b.persona.Identity))
	sb.WriteString("\n\nContext from knowledge base:\n")
	if len(contexts) == 0 {
		sb.WriteString(noContext)
		sb.WriteString("\n")
	}
	for i, c := range contexts {
		fmt.Fprintf(&sb, "[%d] (relevance %.2f) Source: %s\n%s\n\n", i+1, c.Score, c.Source, strings.TrimSpace(c.Content))
	}

	sb.WriteString("\nInstructions:\n")
	for _, ins := range b.persona.Instructions {
		sb.WriteString("- ")
		sb.WriteString(b.persona.render(ins))
		sb.WriteString("\n")
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer the question based on the context above.")
	return sb.String()
}
