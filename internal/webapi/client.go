package webapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Timeout policy is deliberately fixed and not per-call configurable.
// Callers needing different deadlines must build their own http.Client.
const (
	connectTimeout   = 15 * time.Second
	readTimeout      = 30 * time.Second
	defaultUserAgent = "wingu-go/0.1"
)

// TokenSource provides the current auth token for authenticated requests.
// Defined at the consumer per Go convention "accept interfaces, return
// structs". Session provides the real implementation; an empty string means
// no token is available yet.
type TokenSource interface {
	Token() string
}

// Client is an HTTP client for the wingufile Web API. It handles request
// construction, token header injection, and failure classification. It holds
// no per-transfer state; each call is independent.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a Web API client. baseURL is the server root, e.g.
// "https://cloud.example.com" (trailing slash optional).
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = NewHTTPClient(false)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		userAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// SetUserAgent overrides the User-Agent header sent with every request,
// including link-based transfers. An empty string keeps the default.
func (c *Client) SetUserAgent(ua string) {
	if ua != "" {
		c.userAgent = ua
	}
}

// NewHTTPClient builds an http.Client with the fixed connect/read timeout
// policy. insecureSkipVerify disables TLS certificate and hostname
// validation for deployments with self-signed certificates. It is an
// explicit opt-in, never a silent default.
func NewHTTPClient(insecureSkipVerify bool) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}

	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: readTimeout,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // deployment-specific opt-in, see config
			},
		},
	}
}

// Get executes a GET request against the API. params are appended as the
// query string. The caller is responsible for closing the response body on
// success; non-200 responses are consumed and returned as errors.
func (c *Client) Get(ctx context.Context, apiPath string, params url.Values, authenticated bool) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, apiPath, params, nil, authenticated)
}

// PostForm executes a POST request with an application/x-www-form-urlencoded
// body. params go in the query string, form in the body. Either may be nil.
func (c *Client) PostForm(ctx context.Context, apiPath string, params, form url.Values, authenticated bool) (*http.Response, error) {
	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}

	return c.do(ctx, http.MethodPost, apiPath, params, body, authenticated)
}

func (c *Client) do(ctx context.Context, method, apiPath string, params url.Values, body io.Reader, authenticated bool) (*http.Response, error) {
	reqURL := c.baseURL + apiPath
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("webapi: creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if authenticated {
		req.Header.Set("Authorization", "Token "+c.token.Token())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", apiPath),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("webapi: %s %s: %w: %w", method, apiPath, transportSentinel(err), err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		statusErr := errorFromResponse(resp)
		c.logger.Warn("request returned error status",
			slog.String("method", method),
			slog.String("path", apiPath),
			slog.Int("status", resp.StatusCode),
		)

		return nil, statusErr
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("path", apiPath),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}
