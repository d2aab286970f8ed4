package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

type stubChatModel struct {
	chunks []*schema.Message
	err    error
	input  []*schema.Message
	opts   *model.Options
}

func (s *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not used")
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	s.input = input
	s.opts = model.GetCommonOptions(&model.Options{}, opts...)
	if s.err != nil {
		return nil, s.err
	}
	return schema.StreamReaderFromArray(s.chunks), nil
}

func TestOpenAIChat_ChatStream(t *testing.T) {
	t.Run("forwards content and options", func(t *testing.T) {
		stub := &stubChatModel{chunks: []*schema.Message{
			{Role: schema.Assistant, Content: "Go "},
			{Role: schema.Assistant, Content: ""},
			{Role: schema.Assistant, Content: "rocks"},
		}}
		c := &OpenAIChat{model: "gpt-test", cm: stub}

		ch, err := c.ChatStream(context.Background(), []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleUser, Content: "q"},
			{Role: domain.RoleAssistant, Content: "a"},
		}, port.ChatOptions{Temperature: 0.7, MaxTokens: 1000})
		require.NoError(t, err)

		text, err := drain(t, ch)
		require.NoError(t, err)
		assert.Equal(t, "Go rocks", text)

		require.Len(t, stub.input, 3)
		assert.Equal(t, schema.System, stub.input[0].Role)
		assert.Equal(t, schema.User, stub.input[1].Role)
		assert.Equal(t, schema.Assistant, stub.input[2].Role)
		require.NotNil(t, stub.opts.Temperature)
		assert.InDelta(t, 0.7, *stub.opts.Temperature, 1e-6)
		require.NotNil(t, stub.opts.MaxTokens)
		assert.Equal(t, 1000, *stub.opts.MaxTokens)
	})

	t.Run("rejection", func(t *testing.T) {
		c := &OpenAIChat{model: "gpt-test", cm: &stubChatModel{err: errors.New("401 invalid key")}}
		_, err := c.ChatStream(context.Background(), nil, port.ChatOptions{})
		assert.ErrorContains(t, err, "invalid key")
	})
}

func TestNewOpenAIChat_RequiresKey(t *testing.T) {
	_, err := NewOpenAIChat(context.Background(), OpenAIChatConfig{Model: "gpt"})
	assert.Error(t, err)
}
