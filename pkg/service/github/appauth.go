package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// GitHub rejects app JWTs valid longer than 10 minutes, and rejects
	// tokens issued "in the future" when clocks drift. Backdating iat and
	// keeping the lifetime under the limit absorbs reasonable skew.
	appJWTLifetime = 9 * time.Minute
	appJWTBackdate = 30 * time.Second

	// refresh the installation token this long before it expires
	tokenExpiryMargin = 2 * time.Minute
)

// TokenSource supplies the Authorization token for API requests
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticTokenSource string

// StaticTokenSource wraps a fixed personal access token
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

// Token implements TokenSource
func (s staticTokenSource) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", goerr.New("GitHub token is empty")
	}
	return string(s), nil
}

// AppTokenSource authenticates as a GitHub App installation: a short-lived
// RS256 JWT signed with the app's private key is exchanged for an
// installation token, which is cached until near expiry.
type AppTokenSource struct {
	appID          string
	installationID int64
	key            jwk.Key
	httpClient     *http.Client
	baseURL        string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	appSlug   string
}

// AppOption configures an AppTokenSource
type AppOption func(*AppTokenSource)

// WithAppBaseURL overrides the API base URL (used for tests)
func WithAppBaseURL(baseURL string) AppOption {
	return func(s *AppTokenSource) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAppHTTPClient overrides the underlying HTTP client
func WithAppHTTPClient(httpClient *http.Client) AppOption {
	return func(s *AppTokenSource) {
		s.httpClient = httpClient
	}
}

// NewAppTokenSource parses the app's PEM private key and returns a token
// source for the given installation
func NewAppTokenSource(appID string, installationID int64, privateKeyPEM []byte, opts ...AppOption) (*AppTokenSource, error) {
	if appID == "" {
		return nil, goerr.New("GitHub App ID is required")
	}
	if installationID <= 0 {
		return nil, goerr.New("GitHub App installation ID is required",
			goerr.V("installation_id", installationID))
	}

	key, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse GitHub App private key")
	}

	s := &AppTokenSource{
		appID:          appID,
		installationID: installationID,
		key:            key,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		baseURL:        defaultBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token implements TokenSource
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiresAt.Add(-tokenExpiryMargin)) {
		return s.token, nil
	}

	appJWT, err := s.signAppJWT()
	if err != nil {
		return "", err
	}

	if s.appSlug == "" {
		slug, err := s.fetchAppSlug(ctx, appJWT)
		if err != nil {
			ctxlog.From(ctx).Warn("failed to look up authenticated GitHub App", "error", err)
		} else {
			s.appSlug = slug
			ctxlog.From(ctx).Debug("authenticated as GitHub App", "app", slug)
		}
	}

	token, expiresAt, err := s.mintInstallationToken(ctx, appJWT)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = expiresAt
	ctxlog.From(ctx).Debug("minted GitHub App installation token",
		"installation_id", s.installationID,
		"expires_at", expiresAt,
	)
	return token, nil
}

func (s *AppTokenSource) signAppJWT() (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(s.appID).
		IssuedAt(now.Add(-appJWTBackdate)).
		Expiration(now.Add(appJWTLifetime)).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build GitHub App JWT")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.key))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign GitHub App JWT")
	}
	return string(signed), nil
}

func (s *AppTokenSource) newAppRequest(ctx context.Context, method, path, appJWT string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

type appResponse struct {
	Slug string `json:"slug"`
}

func (s *AppTokenSource) fetchAppSlug(ctx context.Context, appJWT string) (string, error) {
	req, err := s.newAppRequest(ctx, http.MethodGet, "/app", appJWT)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get authenticated app")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", goerr.New("authenticated app lookup rejected",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", strings.TrimSpace(string(body))))
	}

	var app appResponse
	if err := json.NewDecoder(resp.Body).Decode(&app); err != nil {
		return "", goerr.Wrap(err, "failed to decode app response")
	}
	return app.Slug, nil
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *AppTokenSource) mintInstallationToken(ctx context.Context, appJWT string) (string, time.Time, error) {
	path := fmt.Sprintf("/app/installations/%d/access_tokens", s.installationID)
	req, err := s.newAppRequest(ctx, http.MethodPost, path, appJWT)
	if err != nil {
		return "", time.Time{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, goerr.Wrap(err, "failed to request installation token",
			goerr.V("installation_id", s.installationID))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", time.Time{}, goerr.New("installation token request rejected",
			goerr.V("installation_id", s.installationID),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", strings.TrimSpace(string(body))))
	}

	var issued installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return "", time.Time{}, goerr.Wrap(err, "failed to decode installation token response")
	}
	if issued.Token == "" {
		return "", time.Time{}, goerr.New("installation token response has no token")
	}
	return issued.Token, issued.ExpiresAt, nil
}

var _ TokenSource = (*AppTokenSource)(nil)
var _ TokenSource = staticTokenSource("")
