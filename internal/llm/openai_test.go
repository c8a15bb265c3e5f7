package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (m *mockCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.req = req
	return m.resp, m.err
}

func sampleWindow() []Turn {
	return []Turn{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "alice: hi"},
		{Role: RoleAssistant, Content: "hello"},
	}
}

func TestOpenAI_SendsFlatMessageList(t *testing.T) {
	mock := &mockCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "reply"}}},
	}}
	g := &OpenAI{client: mock, model: "gpt-4o"}

	out, err := g.Generate(context.Background(), sampleWindow())
	require.NoError(t, err)
	require.Equal(t, "reply", out)

	require.Equal(t, "gpt-4o", mock.req.Model)
	require.Len(t, mock.req.Messages, 3)
	require.Equal(t, openai.ChatMessageRoleSystem, mock.req.Messages[0].Role)
	require.Equal(t, "alice: hi", mock.req.Messages[1].Content)
	require.Equal(t, openai.ChatMessageRoleAssistant, mock.req.Messages[2].Role)
}

func TestOpenAI_EmptyResponseFallsBack(t *testing.T) {
	g := &OpenAI{client: &mockCompleter{}, model: "gpt-4o"}

	out, err := g.Generate(context.Background(), sampleWindow())
	require.NoError(t, err)
	require.Equal(t, FallbackText, out)
}

func TestOpenAI_TransportErrorIsTyped(t *testing.T) {
	g := &OpenAI{client: &mockCompleter{err: errors.New("connection refused")}, model: "gpt-4o"}

	_, err := g.Generate(context.Background(), sampleWindow())
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, KindTransport, gerr.Kind)
	require.Equal(t, "openai", gerr.Provider)
}
