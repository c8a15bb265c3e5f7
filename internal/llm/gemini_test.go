package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(context.Context) (string, error) { return s.token, s.err }

func newTestGemini(srv *httptest.Server, grounding bool) *Gemini {
	g := NewGemini(GeminiParams{
		ProjectID: "proj",
		Location:  "us-central1",
		Model:     "gemini-pro",
		Grounding: grounding,
	}, staticTokens{token: "tok"}, srv.Client())
	g.endpoint = srv.URL
	return g
}

func TestGemini_RemapsRolesAndAuthenticates(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"reply"}]}}]}`)
	}))
	defer srv.Close()

	out, err := newTestGemini(srv, false).Generate(context.Background(), sampleWindow())
	require.NoError(t, err)
	require.Equal(t, "reply", out)

	require.Len(t, got.Contents, 3)
	require.Equal(t, "user", got.Contents[0].Role) // system folded into user role
	require.Equal(t, "be nice", got.Contents[0].Parts[0].Text)
	require.Equal(t, "user", got.Contents[1].Role)
	require.Equal(t, "model", got.Contents[2].Role)
	require.Empty(t, got.Tools)
}

func TestGemini_GroundingAppendsToolBlock(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"reply"}]}}]}`)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv, true).Generate(context.Background(), sampleWindow())
	require.NoError(t, err)
	require.Contains(t, string(raw["tools"]), "googleSearchRetrieval")
}

func TestGemini_EmptyCandidatesFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	out, err := newTestGemini(srv, false).Generate(context.Background(), sampleWindow())
	require.NoError(t, err)
	require.Equal(t, FallbackText, out)
}

func TestGemini_TokenFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued without a token")
	}))
	defer srv.Close()

	g := NewGemini(GeminiParams{}, staticTokens{err: errors.New("key unreadable")}, srv.Client())
	g.endpoint = srv.URL

	_, err := g.Generate(context.Background(), sampleWindow())
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, KindAuth, gerr.Kind)
}

func TestGemini_UpstreamStatusMapsToErrorKind(t *testing.T) {
	// Vertex AI reports failures as JSON bodies that decode cleanly, so the
	// status line itself must drive the outcome.
	cases := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"server error", http.StatusInternalServerError, KindTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprintf(w, `{"error":{"code":%d,"message":"denied"}}`, tc.status)
			}))
			defer srv.Close()

			_, err := newTestGemini(srv, false).Generate(context.Background(), sampleWindow())
			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			require.Equal(t, tc.kind, gerr.Kind)
			require.ErrorContains(t, err, "denied")
		})
	}
}

func TestGemini_EndpointShape(t *testing.T) {
	g := NewGemini(GeminiParams{ProjectID: "p1", Location: "europe-west4", Model: "gemini-pro"}, staticTokens{}, nil)
	require.Equal(t,
		"https://europe-west4-aiplatform.googleapis.com/v1/projects/p1/locations/europe-west4/publishers/google/models/gemini-pro:generateContent",
		g.endpoint)
}
