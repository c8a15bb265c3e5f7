// Package llm maps assembled context windows onto concrete LLM provider
// APIs and unwraps their responses into plain text.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/telence/telence-go/internal/config"
	"github.com/telence/telence-go/internal/googleauth"
)

// Role tags one turn of a prompt.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged unit of text in a context window.
type Turn struct {
	Role    Role
	Content string
}

// FallbackText is returned as the reply when a provider answers without any
// usable content. It is bot text, not an error.
const FallbackText = "Error generating response."

// Generator produces a plain-text reply for an assembled context window.
type Generator interface {
	Generate(ctx context.Context, window []Turn) (string, error)
}

// New selects the provider variant fixed by configuration. An unknown
// provider here means config validation was bypassed; it is still refused.
func New(cfg *config.Config, client *http.Client) (Generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, client), nil
	case config.ProviderGemini:
		tokens := googleauth.NewTokenSource(cfg.Google.CredentialsFile, client)
		return NewGemini(GeminiParams{
			ProjectID: cfg.Google.ProjectID,
			Location:  cfg.Google.Location,
			Model:     cfg.LLM.Model,
			Grounding: cfg.LLM.Grounding,
		}, tokens, client), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
	}
}
