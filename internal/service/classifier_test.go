package service

import (
	"testing"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Run("Skills file mentioning programming is a skill", func(t *testing.T) {
		c := Classify("skills.txt", "I enjoy programming in many languages.")

		assert.Equal(t, domain.ContentTypeSkill, c.ContentType)
		assert.Equal(t, domain.ImportanceHigh, c.Importance)
	})

	t.Run("Content keywords apply when the file name is neutral", func(t *testing.T) {
		c := Classify("notes-2024.md", "Graduated from the University of Lisbon with a degree in CS.")

		assert.Equal(t, domain.ContentTypeEducation, c.ContentType)
		assert.Equal(t, domain.ImportanceLow, c.Importance)
	})

	t.Run("File name keywords win over content keywords", func(t *testing.T) {
		c := Classify("contact.txt", "Skills: programming. Email: me@example.com")

		assert.Equal(t, domain.ContentTypeContact, c.ContentType)
	})

	t.Run("Category detection", func(t *testing.T) {
		assert.Equal(t, domain.CategoryBlockchain, Classify("a.txt", "Wrote Solidity smart contracts").Category)
		assert.Equal(t, domain.CategoryFrontend, Classify("a.txt", "Built dashboards in React").Category)
		assert.Equal(t, domain.CategoryDevOps, Classify("a.txt", "Ran Kubernetes clusters").Category)
		assert.Equal(t, domain.CategoryAI, Classify("a.txt", "Shipped an LLM chatbot").Category)
	})

	t.Run("Defaults for unrelated text", func(t *testing.T) {
		c := Classify("a.txt", "The quick brown fox.")

		assert.Equal(t, domain.ContentTypeGeneral, c.ContentType)
		assert.Equal(t, domain.CategoryGeneral, c.Category)
		assert.Equal(t, domain.ImportanceMedium, c.Importance)
		assert.Empty(t, c.Tags)
	})

	t.Run("Tags follow vocabulary order without duplicates", func(t *testing.T) {
		c := Classify("a.txt", "Docker, React and Docker again, with TypeScript and react hooks")

		assert.Equal(t, []string{"react", "typescript", "docker"}, c.Tags)
	})
}

func TestTagVocabularyHasNoDuplicates(t *testing.T) {
	seen := map[string]bool{}
	for _, kw := range tagVocabulary {
		assert.False(t, seen[kw], "duplicate tag %q", kw)
		seen[kw] = true
	}
}
