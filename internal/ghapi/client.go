// Package ghapi implements the rate-limit-aware GitHub REST client the
// report pipeline runs on.
//
// The client exposes one method per HTTP verb. Paths beginning with "/" are
// rewritten against the fixed API base URL, preview media types are merged
// into the Accept header, and an access-token credential is injected as a
// query parameter unless the caller supplied explicit auth. A shared
// RateLimiter is consulted before every request on every verb and blocks
// the caller while GitHub's quota is exhausted.
//
// Non-2xx responses are not errors: callers check Response.OK and decide
// per call site whether missing data is fatal.
package ghapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultBaseURL = "https://api.github.com"

	// Preview media types the libraries endpoints were built against.
	// A caller-supplied Accept header gets these appended; an absent one
	// is set to the hellcat preview alone.
	acceptPreviewMerge   = "application/vnd.github.scarlet-witch-preview+json;application/vnd.github.hellcat-preview+json"
	acceptPreviewDefault = "application/vnd.github.hellcat-preview+json"

	requestTimeout = 30 * time.Second
)

// BasicAuth is an explicit username/password credential. Supplying one
// suppresses the configured access-token query parameter for that call.
type BasicAuth struct {
	Username string
	Password string
}

// RequestOptions carries the open set of per-call transport options.
// The zero value (or nil) is valid.
type RequestOptions struct {
	// Params are merged into the request's query string.
	Params url.Values
	// Headers are set on the request before the Accept merge.
	Headers http.Header
	// JSON, when non-nil, is marshaled as the request body with an
	// application/json content type.
	JSON any
	// Auth, when non-nil, is sent as HTTP basic auth.
	Auth *BasicAuth
}

// Response is the outcome of a single API call. The body has already been
// read; the caller owns nothing that needs closing.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Text returns the response body as a string, used mainly for surfacing
// failure bodies in error messages.
func (r *Response) Text() string {
	return string(r.Body)
}

// Client is the rate-limited request client. All verbs share one limiter,
// one credential and one 30-second-timeout transport.
type Client struct {
	// BaseURL is the API base that relative paths are rewritten against.
	// Overridable so tests can point the client at a local server.
	BaseURL string

	token   string
	http    *http.Client
	limiter *RateLimiter
	logger  *log.Logger
}

// NewClient builds a client. token may be empty for unauthenticated calls;
// ciMode selects the limiter's five-minute pause granularity.
func NewClient(token string, ciMode bool, logger *log.Logger) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: NewRateLimiter(ciMode, logger),
		logger:  logger,
	}
}

// Get issues a GET request against path.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, opts)
}

// Post issues a POST request against path.
func (c *Client) Post(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, opts)
}

// Put issues a PUT request against path.
func (c *Client) Put(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, opts)
}

// Patch issues a PATCH request against path.
func (c *Client) Patch(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, opts)
}

// Delete issues a DELETE request against path.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, opts)
}

func (c *Client) do(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	u, err := url.Parse(c.normalizeURL(path))
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", path, err)
	}

	query := u.Query()
	for key, values := range opts.Params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if c.token != "" && opts.Auth == nil {
		query.Set("access_token", c.token)
	}
	u.RawQuery = query.Encode()

	var body io.Reader
	if opts.JSON != nil {
		payload, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for key, values := range opts.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if accept := req.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept+";"+acceptPreviewMerge)
	} else {
		req.Header.Set("Accept", acceptPreviewDefault)
	}
	if opts.JSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.Auth != nil {
		req.SetBasicAuth(opts.Auth.Username, opts.Auth.Password)
	}

	// Block here, not after the response, so every verb honors an
	// exhausted quota observed by any previous call.
	c.limiter.Wait()

	c.logger.Debug("github api request", "method", method, "url", u.Scheme+"://"+u.Host+u.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	c.limiter.Observe(resp.Header)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// normalizeURL rewrites relative API paths against the fixed base URL and
// passes absolute URLs through unchanged.
func (c *Client) normalizeURL(path string) string {
	if strings.HasPrefix(path, "/") {
		return c.BaseURL + path
	}
	return path
}
