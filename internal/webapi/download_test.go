package webapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancellableMonitor is a test monitor whose cancellation can be flipped
// mid-transfer.
type cancellableMonitor struct {
	cancelled bool
	notified  []int64
}

func (m *cancellableMonitor) IsCancelled() bool { return m.cancelled }

func (m *cancellableMonitor) OnProgressNotify(bytesSoFar int64) {
	m.notified = append(m.notified, bytesSoFar)
}

// totalAwareMonitor additionally records the reported total size.
type totalAwareMonitor struct {
	cancellableMonitor

	total int64
}

func (m *totalAwareMonitor) OnTotalSize(total int64) { m.total = total }

func TestGetDownloadLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api2/repos/repo1/file/", r.URL.Path)
		assert.Equal(t, "/docs/readme.txt", r.URL.Query().Get("p"))
		assert.Equal(t, "download", r.URL.Query().Get("op"))

		w.Header().Set("oid", "f1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`"https://cdn.example.com/files/tok/readme.txt"`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	link, fileID, err := client.GetDownloadLink(context.Background(), "repo1", "/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/tok/readme.txt", link)
	assert.Equal(t, ContentID("f1"), fileID)
}

func TestGetDownloadLink_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		oid  string
		body string
	}{
		{"unquoted url", "f1", `https://cdn.example.com/x`},
		{"not a url", "f1", `"ftp://cdn.example.com/x"`},
		{"empty body", "f1", ``},
		{"missing oid header", "", `"https://cdn.example.com/x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.oid != "" {
					w.Header().Set("oid", tt.oid)
				}

				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)

			_, _, err := client.GetDownloadLink(context.Background(), "repo1", "/x")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestDownloadFromLink_StreamsBody(t *testing.T) {
	content := []byte("hello, this is file content")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The link is its own credential; no token header is sent.
		assert.Empty(t, r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	n, err := client.DownloadFromLink(context.Background(), srv.URL+"/files/tok/readme.txt", &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, buf.Bytes())
}

func TestDownloadFromLink_EncodesFinalSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/tok/my%20report%231.txt", r.URL.EscapedPath())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	_, err := client.DownloadFromLink(context.Background(), srv.URL+"/files/tok/my report#1.txt", &buf, nil)
	require.NoError(t, err)
}

func TestDownloadFromLink_MonitorRequiresContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response without a declared length.
		w.Header().Set("Transfer-Encoding", "chunked")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data"))
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	_, err := client.DownloadFromLink(context.Background(), srv.URL+"/f", &buf, &cancellableMonitor{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDownloadFromLink_CancelledMonitorAbortsStream(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 2048)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	_, err := client.DownloadFromLink(context.Background(), srv.URL+"/f", &buf, &cancellableMonitor{cancelled: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestDownloadFromLink_ReportsTotalSizeToMonitor(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1024)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	monitor := &totalAwareMonitor{}

	_, err := client.DownloadFromLink(context.Background(), srv.URL+"/f", &buf, monitor)
	require.NoError(t, err)

	// The total comes from the response Content-Length, reported before
	// any bytes stream so the caller can render "x / y" progress.
	assert.Equal(t, int64(len(content)), monitor.total)
}

func TestDownloadFromLink_CancelledContextIsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer

	_, err := client.DownloadFromLink(ctx, srv.URL+"/f", &buf, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestDownloadFromLink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("link expired"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var buf bytes.Buffer

	_, err := client.DownloadFromLink(context.Background(), srv.URL+"/f", &buf, nil)
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusNotFound, authErr.StatusCode)
}

func TestEncodeFinalSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://h/a/b/plain.txt", "https://h/a/b/plain.txt"},
		{"https://h/a/b/with space.txt", "https://h/a/b/with%20space.txt"},
		{"https://h/a/b/100%.txt", "https://h/a/b/100%25.txt"},
		{"no-slashes", "no-slashes"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, encodeFinalSegment(tt.in), tt.in)
	}
}

func TestParseQuotedURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"https", `"https://h/x"`, "https://h/x", true},
		{"http", `"http://h/x"`, "http://h/x", true},
		{"surrounding whitespace", "\n \"https://h/x\" \n", "https://h/x", true},
		{"unquoted", `https://h/x`, "", false},
		{"wrong scheme", `"ftp://h/x"`, "", false},
		{"empty", ``, "", false},
		{"single quote char", `"`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseQuotedURL([]byte(tt.body))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
