package llm

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/telence/telence-go/internal/logger"
)

var log = logger.With("llm")

// OpenAI is the token-header provider variant: the turn list is sent as-is
// as a flat role/content message list.
type OpenAI struct {
	client ChatCompleter
	model  string
}

// NewOpenAI creates the OpenAI gateway. The injected HTTP client carries the
// retry policy and per-attempt timeout.
func NewOpenAI(apiKey, model string, client *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if client != nil {
		cfg.HTTPClient = client
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Generate sends the window to the chat completions endpoint and returns
// the first choice's content.
func (o *OpenAI) Generate(ctx context.Context, window []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(window))
	for _, t := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", &Error{Kind: KindTransport, Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn("openai response had no content", "model", o.model)
		return FallbackText, nil
	}
	return resp.Choices[0].Message.Content, nil
}
