package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://bsky.social/xrpc"

	// DefaultLimit is the fixed window requested from upstream per source.
	DefaultLimit = 20

	// authTimeout bounds the createSession call independently of the
	// caller's context.
	authTimeout = 15 * time.Second
)

var (
	// ErrUnauthorized signals that upstream rejected the bearer token.
	ErrUnauthorized = errors.New("bluesky: unauthorized")

	// ErrNotFound signals that upstream could not resolve the subject.
	ErrNotFound = errors.New("bluesky: not found")
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithRateLimit replaces the client-side limiter applied to upstream calls.
func WithRateLimit(limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// Client is a Bluesky xrpc API client.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
}

// NewClient creates a new Bluesky API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 4),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateSession authenticates with an identifier and password and returns
// the issued token pair. The response must carry both tokens.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/com.atproto.server.createSession", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("createSession: status %d", resp.StatusCode)
	}

	var tokens Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse createSession response: %w", err)
	}
	if tokens.AccessJwt == "" || tokens.RefreshJwt == "" {
		return nil, errors.New("createSession response missing tokens")
	}

	return &tokens, nil
}

// ResolveHandle resolves an account handle to its stable DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	params := url.Values{}
	params.Set("handle", handle)

	body, err := c.get(ctx, "com.atproto.identity.resolveHandle", params, "")
	if err != nil {
		return "", err
	}

	var response struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse resolveHandle response: %w", err)
	}
	if response.DID == "" {
		return "", fmt.Errorf("resolveHandle %q: %w", handle, ErrNotFound)
	}

	return response.DID, nil
}

// AuthorFeed fetches recent posts authored by the given actor (a DID or
// handle), unwrapped from their feed items.
func (c *Client) AuthorFeed(ctx context.Context, accessToken, actor string, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("actor", actor)
	params.Set("limit", fmt.Sprintf("%d", limit))

	body, err := c.get(ctx, "app.bsky.feed.getAuthorFeed", params, accessToken)
	if err != nil {
		return nil, err
	}

	var response struct {
		Feed []struct {
			Post *Post `json:"post"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse author feed response: %w", err)
	}

	posts := make([]Post, 0, len(response.Feed))
	for _, item := range response.Feed {
		if item.Post == nil {
			continue
		}
		posts = append(posts, *item.Post)
	}

	return posts, nil
}

// SearchPosts searches posts matching the query, newest first.
func (c *Client) SearchPosts(ctx context.Context, accessToken, query string, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))

	body, err := c.get(ctx, "app.bsky.feed.searchPosts", params, accessToken)
	if err != nil {
		return nil, err
	}

	var response struct {
		Posts []Post `json:"posts"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return response.Posts, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, accessToken string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(endpoint, resp.StatusCode)
	}

	return body, nil
}

func (c *Client) apiError(endpoint string, statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d)", endpoint, ErrUnauthorized, statusCode)
	case http.StatusBadRequest, http.StatusNotFound:
		return fmt.Errorf("%s: %w (status %d)", endpoint, ErrNotFound, statusCode)
	default:
		return fmt.Errorf("%s: unexpected status %d", endpoint, statusCode)
	}
}
