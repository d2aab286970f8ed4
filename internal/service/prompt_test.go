package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

func TestPromptBuilder_BuildSystemPrompt(t *testing.T) {
	b := NewPromptBuilder(DefaultPersona("Ada Lovelace"))

	t.Run("ranks context and ends with the question", func(t *testing.T) {
		p := b.BuildSystemPrompt([]domain.RetrievedContext{
			{Content: "Wrote the first program.", Score: 0.91, Source: "bio"},
			{Content: " Worked with Babbage. ", Score: 0.4, Source: "history"},
		}, "What did she build?")

		assert.Contains(t, p, "Ada Lovelace's portfolio website")
		assert.Contains(t, p, "[1] (relevance 0.91) Source: bio\nWrote the first program.")
		assert.Contains(t, p, "[2] (relevance 0.40) Source: history\nWorked with Babbage.")
		assert.NotContains(t, p, "{{name}}")
		assert.Less(t, strings.Index(p, "[1]"), strings.Index(p, "[2]"))
		assert.Less(t, strings.Index(p, "Instructions:"), strings.Index(p, "Question: What did she build?"))
	})

	t.Run("empty context", func(t *testing.T) {
		p := b.BuildSystemPrompt(nil, "hi")
		assert.Contains(t, p, noContext)
	})
}

func TestLoadPersona(t *testing.T) {
	t.Run("default when no file", func(t *testing.T) {
		p, err := LoadPersona("", "Sam")
		require.NoError(t, err)
		assert.Equal(t, "Sam", p.Name)
		s := p.SuggestionList()
		assert.Equal(t, "What are Sam's key technical skills?", s.Initial[0])
		assert.Equal(t, "How to contact Sam?", s.FollowUp[2])
	})

	t.Run("yaml overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "persona.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
identity: "You speak for {{name}}."
instructions:
  - "Answer in one paragraph."
suggestions:
  initial: ["Who is {{name}}?"]
`), 0o600))

		p, err := LoadPersona(path, "Sam")
		require.NoError(t, err)
		assert.Equal(t, "Sam", p.Name)
		assert.Equal(t, []string{"Answer in one paragraph."}, p.Instructions)
		assert.Equal(t, []string{"Who is Sam?"}, p.SuggestionList().Initial)
		assert.NotEmpty(t, p.FallbackKeywords)

		prompt := NewPromptBuilder(p).BuildSystemPrompt(nil, "q")
		assert.True(t, strings.HasPrefix(prompt, "You speak for Sam."))
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "persona.yaml")
		require.NoError(t, os.WriteFile(path, []byte("instructions: [unclosed"), 0o600))
		_, err := LoadPersona(path, "Sam")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPersona(filepath.Join(t.TempDir(), "nope.yaml"), "Sam")
		assert.Error(t, err)
	})
}

func TestPersona_IsIdentityQuestion(t *testing.T) {
	p := DefaultPersona("Jane Doe")
	assert.True(t, p.IsIdentityQuestion("Who is she?"))
	assert.True(t, p.IsIdentityQuestion("what does jane doe do"))
	assert.False(t, p.IsIdentityQuestion("What is Kubernetes?"))
}
