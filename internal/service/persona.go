package service

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona holds the prompt and UI text tied to the portfolio owner. Fields
// may contain {{name}}, which is replaced with Name.
type Persona struct {
	Name             string      `yaml:"name"`
	Identity         string      `yaml:"identity"`
	Instructions     []string    `yaml:"instructions"`
	FallbackKeywords []string    `yaml:"fallback_keywords"`
	IdentityTriggers []string    `yaml:"identity_triggers"`
	Suggestions      Suggestions `yaml:"suggestions"`
}

// Suggestions are the starter and follow-up questions offered by the chat UI.
type Suggestions struct {
	Initial  []string `yaml:"initial" json:"initial"`
	FollowUp []string `yaml:"follow_up" json:"followUp"`
}

// DefaultPersona returns the built-in persona for name.
func DefaultPersona(name string) Persona {
	return Persona{
		Name:     name,
		Identity: "You are a helpful AI assistant for {{name}}'s portfolio website. Use the context from the knowledge base to answer questions about {{name}}'s experience, skills, and projects.",
		Instructions: []string{
			"Use the provided context to give accurate, detailed responses.",
			"If the context doesn't contain relevant information, politely say you don't have that specific information.",
			"Be conversational and helpful.",
			"Focus on {{name}}'s professional background, skills, and projects.",
			"For questions unrelated to {{name}}'s work, briefly redirect the conversation back to the portfolio.",
			"Never invent employers, dates, or contact details that are not in the context.",
		},
		FallbackKeywords: []string{"background", "experience", "skills", "profile", "about"},
		IdentityTriggers: []string{"who is", "who are", "tell me about", "about you", "introduce", "background", "yourself"},
		Suggestions: Suggestions{
			Initial: []string{
				"What are {{name}}'s key technical skills?",
				"Tell me about {{name}}'s recent projects",
				"What's {{name}}'s professional background?",
				"Show me their development experience",
			},
			FollowUp: []string{
				"Show me {{name}}'s portfolio projects?",
				"What technologies were used?",
				"How to contact {{name}}?",
			},
		},
	}
}

// LoadPersona reads a YAML persona file on top of DefaultPersona(name).
// Fields missing from the file keep their defaults. An empty path returns the default.
func LoadPersona(path, name string) (Persona, error) {
	p := DefaultPersona(name)
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read persona: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse persona %s: %w", path, err)
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = name
	}
	return p, nil
}

func (p Persona) render(s string) string {
	return strings.ReplaceAll(s, "{{name}}", p.Name)
}

// SuggestionList returns the suggestions with the persona name substituted.
func (p Persona) SuggestionList() Suggestions {
	out := Suggestions{
		Initial:  make([]string, len(p.Suggestions.Initial)),
		FollowUp: make([]string, len(p.Suggestions.FollowUp)),
	}
	for i, q := range p.Suggestions.Initial {
		out.Initial[i] = p.render(q)
	}
	for i, q := range p.Suggestions.FollowUp {
		out.FollowUp[i] = p.render(q)
	}
	return out
}

// IsIdentityQuestion reports whether the question asks who the owner is.
func (p Persona) IsIdentityQuestion(question string) bool {
	q := strings.ToLower(question)
	if p.Name != "" && strings.Contains(q, strings.ToLower(p.Name)) {
		return true
	}
	for _, t := range p.IdentityTriggers {
		if strings.Contains(q, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// ExpandedQuery combines the owner's name with the generic background keywords.
func (p Persona) ExpandedQuery() string {
	parts := append([]string{p.Name}, p.FallbackKeywords...)
	return strings.TrimSpace(strings.Join(parts, " "))
}
