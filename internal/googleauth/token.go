// Package googleauth exchanges a service-account key for short-lived Vertex
// AI bearer tokens and caches them for the life of the process.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qmuntal/stateless"
	"golang.org/x/sync/singleflight"

	"github.com/telence/telence-go/internal/logger"
)

const (
	// Tokens are treated as expired this long before their literal expiry
	// to absorb clock skew and in-flight request latency.
	expiryBuffer = 60 * time.Second

	assertionLifetime = time.Hour
	tokenScope        = "https://www.googleapis.com/auth/cloud-platform"
	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

var log = logger.With("googleauth")

// Credential lifecycle states. "Expiring" is not stored: it is computed on
// every read from the expiry buffer.
const (
	StateEmpty   = "Empty"
	StateValid   = "Valid"
	StateInvalid = "Invalid"
)

const (
	triggerAcquired = "Acquired"
	triggerFailed   = "Failed"
)

// AuthError is a credential acquisition failure. The cache has already been
// invalidated when one of these surfaces.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("googleauth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// serviceAccount is the subset of the JSON key file this package reads.
type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenSource obtains, caches, and refreshes a bearer token via the
// signed-assertion exchange. It is safe for concurrent use: readers never
// observe a partially written credential, and concurrent refreshes collapse
// into a single token-endpoint call.
type TokenSource struct {
	credentialsFile string
	client          *http.Client
	now             func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	fsm       *stateless.StateMachine
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a token source reading the service-account key at
// credentialsFile. The key file is read lazily on first use.
func NewTokenSource(credentialsFile string, client *http.Client) *TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	fsm := stateless.NewStateMachine(StateEmpty)
	fsm.Configure(StateEmpty).
		Permit(triggerAcquired, StateValid).
		Permit(triggerFailed, StateInvalid)
	fsm.Configure(StateValid).
		PermitReentry(triggerAcquired).
		Permit(triggerFailed, StateInvalid)
	fsm.Configure(StateInvalid).
		Permit(triggerAcquired, StateValid).
		PermitReentry(triggerFailed)
	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		log.Debug("credential state changed", "from", t.Source, "to", t.Destination)
	})
	return &TokenSource{
		credentialsFile: credentialsFile,
		client:          client,
		now:             time.Now,
		fsm:             fsm,
	}
}

// Token returns a bearer token valid for at least the expiry buffer,
// refreshing it if needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}
	v, err, _ := s.group.Do("token", func() (any, error) {
		// A concurrent caller may have refreshed while we queued.
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// State reports the current lifecycle state (for logs and tests).
func (s *TokenSource) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprint(s.fsm.MustState())
}

// cached returns the token only when the cache is Valid and outside the
// expiry buffer window.
func (s *TokenSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.MustState() != StateValid {
		return "", false
	}
	if !s.expiresAt.After(s.now().Add(expiryBuffer)) {
		return "", false
	}
	return s.token, true
}

// refresh performs the full acquisition and replaces the cache wholesale.
// Any failure clears it entirely; the next call starts from scratch.
func (s *TokenSource) refresh(ctx context.Context) (string, error) {
	tok, expiresAt, err := s.exchange(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.token = ""
		s.expiresAt = time.Time{}
		_ = s.fsm.Fire(triggerFailed)
		return "", err
	}
	s.token = tok
	s.expiresAt = expiresAt
	_ = s.fsm.Fire(triggerAcquired)
	return tok, nil
}

func (s *TokenSource) exchange(ctx context.Context) (string, time.Time, error) {
	raw, err := os.ReadFile(s.credentialsFile)
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "read key file", Err: err}
	}
	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return "", time.Time{}, &AuthError{Op: "parse key file", Err: err}
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" || sa.TokenURI == "" {
		return "", time.Time{}, &AuthError{Op: "parse key file", Err: fmt.Errorf("missing client_email, private_key or token_uri")}
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "import private key", Err: err}
	}

	now := s.now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": tokenScope,
		"aud":   sa.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}).SignedString(key)
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "sign assertion", Err: err}
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "exchange assertion", Err: err}
	}
	defer resp.Body.Close()

	// The injected client may already turn bad statuses into errors, but a
	// plain client would hand us a 4xx JSON error body that decodes cleanly.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", time.Time{}, &AuthError{Op: "exchange assertion", Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, &AuthError{Op: "decode token response", Err: err}
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return "", time.Time{}, &AuthError{Op: "decode token response", Err: fmt.Errorf("empty access token or lifetime")}
	}
	return tr.AccessToken, s.now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}
