package webapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticToken is a test TokenSource that returns a fixed token.
type staticToken string

func (t staticToken) Token() string { return string(t) }

// newTestClient creates a Client pointing at the given httptest server.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	return NewClient(url, http.DefaultClient, staticToken("test-token"), slog.Default())
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	params := url.Values{}
	params.Set("foo", "bar")

	resp, err := client.Get(context.Background(), "/api2/test/", params, true)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"value":"ok"}`, string(body))
}

func TestGet_Unauthenticated_OmitsTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.Get(context.Background(), "/api2/test/", nil, false)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestPostForm_SendsFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "mkdir", r.PostFormValue("operation"))
		assert.Equal(t, "/docs", r.URL.Query().Get("p"))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	params := url.Values{}
	params.Set("p", "/docs")

	form := url.Values{}
	form.Set("operation", "mkdir")

	resp, err := client.PostForm(context.Background(), "/api2/test/", params, form, true)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestDo_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	client := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "/api2/test/", nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestDo_CancelledContextIsCancellationNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "/api2/test/", nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestDo_SendsDefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.Get(context.Background(), "/api2/test/", nil, true)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestSetUserAgent_OverridesHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.SetUserAgent("custom/1.0")

	resp, err := client.Get(context.Background(), "/api2/test/", nil, true)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestSetUserAgent_EmptyKeepsDefault(t *testing.T) {
	client := NewClient("https://cloud.example.com", nil, staticToken(""), nil)
	client.SetUserAgent("")
	assert.Equal(t, defaultUserAgent, client.userAgent)
}

func TestDo_ErrorStatusWithMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"Permission denied"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "/api2/test/", nil, true)
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Contains(t, authErr.Message, "Permission denied")
}

func TestDo_ErrorStatusWithoutMessageFallsBackToReasonPhrase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "/api2/test/", nil, true)
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusNotFound, authErr.StatusCode)
	assert.Equal(t, "Not Found", authErr.Message)
	assert.True(t, IsNotFound(err))
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient("https://cloud.example.com/", nil, staticToken(""), nil)
	assert.Equal(t, "https://cloud.example.com", client.baseURL)
}

func TestIsPasswordRequired(t *testing.T) {
	assert.True(t, IsPasswordRequired(&AuthError{StatusCode: StatusPasswordRequired, Message: "Password needed"}))
	assert.False(t, IsPasswordRequired(&AuthError{StatusCode: http.StatusForbidden, Message: "nope"}))
	assert.False(t, IsPasswordRequired(ErrNetwork))
}
