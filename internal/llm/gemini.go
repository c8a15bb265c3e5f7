package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BearerSource supplies short-lived bearer tokens for the Vertex AI endpoint.
type BearerSource interface {
	Token(ctx context.Context) (string, error)
}

// GeminiParams parameterize the Vertex AI generateContent endpoint.
type GeminiParams struct {
	ProjectID string
	Location  string
	Model     string
	Grounding bool
}

// Gemini is the signed-credential provider variant: roles are remapped to
// the Vertex AI content shape and auth goes through a token source.
type Gemini struct {
	endpoint  string
	grounding bool
	tokens    BearerSource
	client    *http.Client
}

// NewGemini creates the Vertex AI gateway.
func NewGemini(p GeminiParams, tokens BearerSource, client *http.Client) *Gemini {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gemini{
		endpoint: fmt.Sprintf(
			"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			p.Location, p.ProjectID, p.Location, p.Model),
		grounding: p.Grounding,
		tokens:    tokens,
		client:    client,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearchRetrieval struct{} `json:"googleSearchRetrieval"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the window to generateContent and returns the first
// candidate's text.
func (g *Gemini) Generate(ctx context.Context, window []Turn) (string, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return "", &Error{Kind: KindAuth, Provider: "gemini", Err: err}
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: remapTurns(window),
		Tools:    g.tools(),
	})
	if err != nil {
		return "", &Error{Kind: KindDecode, Provider: "gemini", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindTransport, Provider: "gemini", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, Provider: "gemini", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := KindTransport
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = KindAuth
		}
		return "", &Error{Kind: kind, Provider: "gemini", Err: fmt.Errorf("generateContent status %d: %s", resp.StatusCode, body)}
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindDecode, Provider: "gemini", Err: err}
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 ||
		decoded.Candidates[0].Content.Parts[0].Text == "" {
		log.Warn("gemini response had no content", "endpoint", g.endpoint)
		return FallbackText, nil
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

func (g *Gemini) tools() []geminiTool {
	if !g.grounding {
		return nil
	}
	return []geminiTool{{}}
}

// remapTurns converts the abstract window into the Vertex AI content list:
// assistant turns become "model", user and system turns become "user".
// Order is preserved so system instructions stay at the front.
func remapTurns(window []Turn) []geminiContent {
	contents := make([]geminiContent, 0, len(window))
	for _, t := range window {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: t.Content}},
		})
	}
	return contents
}
