package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
)

// loginAttempts is the bounded retry budget for LoginWithRetry. Tokens can
// expire mid-session and the first call after expiry is expected to fail,
// so one masked repeat is the policy — never recursive, never more.
const loginAttempts = 2

// Session holds credentials and the current auth token for one account.
// It constructs its own Client with itself as the TokenSource, so token
// refreshes are visible to every request built afterwards.
//
// The token is replaced wholesale on refresh: readers in flight use
// whichever value they captured at call start, never a half-written one.
type Session struct {
	client   *Client
	email    string
	password string
	logger   *slog.Logger

	token atomic.Value // string
}

// NewSession creates a session for (serverURL, email) and the Client it
// authenticates. If httpClient is nil a default secure client is built.
func NewSession(serverURL string, httpClient *http.Client, email, password string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		email:    email,
		password: password,
		logger:   logger,
	}
	s.token.Store("")
	s.client = NewClient(serverURL, httpClient, s, logger)

	return s
}

// Client returns the API client bound to this session's token.
func (s *Session) Client() *Client { return s.client }

// Token returns the current auth token ("" before login).
// Implements TokenSource.
func (s *Session) Token() string {
	tok, _ := s.token.Load().(string)
	return tok
}

// SetToken publishes a previously persisted token, skipping login.
func (s *Session) SetToken(tok string) {
	s.token.Store(tok)
}

// loginResponse is the JSON body of a successful auth-token exchange.
type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges (email, password) for a token and publishes it.
// Non-200 with a server message fails as an AuthError; a body that is not
// valid JSON or lacks the token field fails as ErrMalformedResponse.
func (s *Session) Login(ctx context.Context) error {
	s.logger.Debug("logging in",
		slog.String("server", s.client.baseURL),
		slog.String("email", s.email),
	)

	form := url.Values{}
	form.Set("username", s.email)
	form.Set("password", s.password)

	resp, err := s.client.PostForm(ctx, "/api2/auth-token/", nil, form, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("webapi: reading login response: %w: %w", ErrNetwork, err)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return fmt.Errorf("webapi: decoding login response: %w: %w", ErrMalformedResponse, err)
	}

	if lr.Token == "" {
		return fmt.Errorf("webapi: login response missing token field: %w", ErrMalformedResponse)
	}

	s.token.Store(lr.Token)
	s.logger.Info("login successful", slog.String("email", s.email))

	return nil
}

// LoginWithRetry performs Login with exactly one masked repeat on failure.
// See Retry for the policy rationale.
func (s *Session) LoginWithRetry(ctx context.Context) error {
	return Retry(loginAttempts, func() error {
		return s.Login(ctx)
	})
}

// SetRepoPassword unlocks an encrypted repository for this session's token.
// A wrong password surfaces as an AuthError with the server's status code.
func (s *Session) SetRepoPassword(ctx context.Context, repoID, password string) error {
	form := url.Values{}
	form.Set("password", password)

	resp, err := s.client.PostForm(ctx, "/api2/repos/"+repoID+"/", nil, form, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain body to reuse the connection.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("webapi: draining unlock response: %w: %w", ErrNetwork, err)
	}

	s.logger.Info("repository unlocked", slog.String("repo_id", repoID))

	return nil
}
