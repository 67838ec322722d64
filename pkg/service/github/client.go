package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
)

// Error tags for categorization
var (
	ErrTagRateLimited = goerr.NewTag("rate_limited")
	ErrTagAPIFailure  = goerr.NewTag("api_failure")
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second
	userAgent      = "aistack"

	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 32 * time.Second

	issuesPerPage = 100
	maxIssuePages = 10

	errorBodyLimit = 2048
)

// Client is a thin GitHub REST v3 client scoped to a single repository
type Client struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
	tokens     TokenSource
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL (used for tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Client for owner/repo authenticating via tokens
func New(owner, repo string, tokens TokenSource, opts ...Option) (*Client, error) {
	if owner == "" || repo == "" {
		return nil, goerr.New("github repository is not configured",
			goerr.V("owner", owner), goerr.V("repo", repo))
	}
	if tokens == nil {
		return nil, goerr.New("github token source is required")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		owner:      owner,
		repo:       repo,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Repo returns the owner/repo identifier the client operates on
func (c *Client) Repo() string {
	return c.owner + "/" + c.repo
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request",
			goerr.V("method", method), goerr.V("path", path))
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to obtain GitHub token")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// isRetryableStatus reports whether the status code is worth retrying
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusForbidden, // may be a transient secondary rate limit
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoffFor returns the capped exponential delay before the given attempt
func backoffFor(attempt int) time.Duration {
	backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// rateLimitError returns a tagged error when the primary rate limit window
// is exhausted, nil otherwise. Retrying within the backoff cap cannot
// succeed in that case, so callers should give up immediately.
func rateLimitError(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return nil
	}

	reset := resp.Header.Get("X-RateLimit-Reset")
	return goerr.New("GitHub API rate limit exceeded",
		goerr.T(ErrTagRateLimited),
		goerr.V("status", resp.StatusCode),
		goerr.V("rate_limit_reset", reset),
	)
}

// doWithRetry issues the request, retrying transient failures with capped
// exponential backoff. The request is rebuilt per attempt so bodies can be
// resent. The caller owns the returned response body.
func (c *Client) doWithRetry(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	logger := ctxlog.From(ctx)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffFor(attempt)
			logger.Debug("retrying GitHub request",
				"method", method,
				"path", path,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "GitHub request canceled",
					goerr.V("method", method), goerr.V("path", path))
			case <-time.After(backoff):
			}
		}

		req, err := c.newRequest(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = goerr.Wrap(err, "GitHub request failed",
				goerr.V("method", method), goerr.V("path", path))
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
			if rlErr := rateLimitError(resp); rlErr != nil {
				resp.Body.Close()
				return nil, rlErr
			}
			lastErr = apiError(resp, method, path)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// apiError drains the response into a categorized error. It consumes and
// closes the response body.
func apiError(resp *http.Response, method, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	resp.Body.Close()

	return goerr.New("GitHub API returned an error",
		goerr.T(ErrTagAPIFailure),
		goerr.V("method", method),
		goerr.V("path", path),
		goerr.V("status", resp.StatusCode),
		goerr.V("body", strings.TrimSpace(string(body))),
		goerr.V("rate_limit_remaining", resp.Header.Get("X-RateLimit-Remaining")),
		goerr.V("rate_limit_reset", resp.Header.Get("X-RateLimit-Reset")),
	)
}

// call issues a JSON request and decodes a 2xx response into out when out is
// non-nil
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to encode request body", goerr.V("path", path))
		}
		payload = data
	}

	resp, err := c.doWithRetry(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp, method, path)
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode GitHub response",
			goerr.V("method", method), goerr.V("path", path))
	}
	return nil
}

type issueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type issueResponse struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`

	// set when the record is actually a pull request
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

func (r *issueResponse) toModel() *model.RemoteIssue {
	return &model.RemoteIssue{
		Number:    r.Number,
		Title:     r.Title,
		State:     r.State,
		HTMLURL:   r.HTMLURL,
		CreatedAt: r.CreatedAt,
	}
}

type pullRequestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Draft bool   `json:"draft"`
}

type pullRequestResponse struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Draft   bool   `json:"draft"`
}

type labelsRequest struct {
	Labels []string `json:"labels"`
}

type repositoryResponse struct {
	DefaultBranch string `json:"default_branch"`
}

// CreateIssue implements interfaces.GitHubClient
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*model.RemoteIssue, error) {
	if title == "" {
		return nil, goerr.New("issue title is required")
	}

	path := fmt.Sprintf("/repos/%s/%s/issues", c.owner, c.repo)
	var created issueResponse
	if err := c.call(ctx, http.MethodPost, path, issueRequest{
		Title:  title,
		Body:   body,
		Labels: labels,
	}, &created); err != nil {
		return nil, goerr.Wrap(err, "failed to create issue", goerr.V("title", title))
	}

	ctxlog.From(ctx).Info("created GitHub issue",
		"number", created.Number,
		"title", created.Title,
		"url", created.HTMLURL,
	)
	return created.toModel(), nil
}

// ListOpenIssues implements interfaces.GitHubClient. Pull requests returned
// by the issues endpoint are filtered out.
func (c *Client) ListOpenIssues(ctx context.Context) ([]*model.RemoteIssue, error) {
	var issues []*model.RemoteIssue

	for page := 1; page <= maxIssuePages; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues?state=open&per_page=%d&page=%d",
			c.owner, c.repo, issuesPerPage, page)

		var batch []issueResponse
		if err := c.call(ctx, http.MethodGet, path, nil, &batch); err != nil {
			return nil, goerr.Wrap(err, "failed to list open issues", goerr.V("page", page))
		}

		for _, issue := range batch {
			if issue.PullRequest != nil {
				continue
			}
			issues = append(issues, issue.toModel())
		}
		if len(batch) < issuesPerPage {
			break
		}
	}

	return issues, nil
}

// CreatePullRequest implements interfaces.GitHubClient. The pull request is
// opened as a draft so a human reviews it before it becomes mergeable.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string) (*model.RemotePullRequest, error) {
	if title == "" || head == "" || base == "" {
		return nil, goerr.New("pull request title, head and base are required",
			goerr.V("title", title), goerr.V("head", head), goerr.V("base", base))
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls", c.owner, c.repo)
	var created pullRequestResponse
	if err := c.call(ctx, http.MethodPost, path, pullRequestRequest{
		Title: title,
		Body:  body,
		Head:  head,
		Base:  base,
		Draft: true,
	}, &created); err != nil {
		return nil, goerr.Wrap(err, "failed to create pull request",
			goerr.V("head", head), goerr.V("base", base))
	}

	ctxlog.From(ctx).Info("created GitHub pull request",
		"number", created.Number,
		"title", created.Title,
		"url", created.HTMLURL,
	)
	return &model.RemotePullRequest{
		Number:  created.Number,
		Title:   created.Title,
		State:   created.State,
		HTMLURL: created.HTMLURL,
		Draft:   created.Draft,
	}, nil
}

// AddLabels implements interfaces.GitHubClient. Pull requests share the
// issue label endpoint.
func (c *Client) AddLabels(ctx context.Context, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", c.owner, c.repo, number)
	if err := c.call(ctx, http.MethodPost, path, labelsRequest{Labels: labels}, nil); err != nil {
		return goerr.Wrap(err, "failed to add labels", goerr.V("number", number))
	}
	return nil
}

// BranchExists implements interfaces.GitHubClient
func (c *Client) BranchExists(ctx context.Context, branch string) (bool, error) {
	if branch == "" {
		return false, goerr.New("branch name is required")
	}

	path := fmt.Sprintf("/repos/%s/%s/branches/%s", c.owner, c.repo, url.PathEscape(branch))
	resp, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, goerr.Wrap(err, "failed to check branch", goerr.V("branch", branch))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		resp.Body.Close()
		return true, nil
	default:
		return false, goerr.Wrap(apiError(resp, http.MethodGet, path),
			"failed to check branch", goerr.V("branch", branch))
	}
}

// DefaultBranch implements interfaces.GitHubClient
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s", c.owner, c.repo)
	var repo repositoryResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &repo); err != nil {
		return "", goerr.Wrap(err, "failed to get repository")
	}
	if repo.DefaultBranch == "" {
		return "", goerr.New("repository has no default branch", goerr.V("repo", c.Repo()))
	}
	return repo.DefaultBranch, nil
}

var _ interfaces.GitHubClient = (*Client)(nil)
