package webapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// GetDownloadLink resolves a file's short-lived download URL and its current
// ContentID. There is no conditional variant: the URL expires quickly and
// must be re-resolved before every transfer, even when the cached file ID is
// expected to match — the caller uses the returned ID to decide whether to
// skip the actual byte transfer.
func (c *Client) GetDownloadLink(ctx context.Context, repoID, filePath string) (string, ContentID, error) {
	params := url.Values{}
	params.Set("p", filePath)
	params.Set("op", "download")

	resp, err := c.Get(ctx, fmt.Sprintf("/api2/repos/%s/file/", repoID), params, true)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("webapi: reading download link: %w: %w", ErrNetwork, err)
	}

	fileID := ContentID(resp.Header.Get(oidHeader))

	link, ok := parseQuotedURL(body)
	if !ok || fileID == "" {
		return "", "", fmt.Errorf("webapi: download link response not understood: %w", ErrMalformedResponse)
	}

	c.logger.Debug("resolved download link",
		slog.String("repo_id", repoID),
		slog.String("path", filePath),
		slog.String("oid", fileID.String()),
	)

	return link, fileID, nil
}

// DownloadFromLink streams raw file bytes from a resolved download URL into
// w. The URL's final path segment is percent-encoded before the request is
// issued (filenames may contain characters unsafe for a URL path); the
// preceding path is left untouched. No auth header is sent — the link
// itself is the credential.
//
// When monitor is non-nil the response must declare a Content-Length
// (progress needs a total) and every write is counted through the monitor.
// Returns the number of bytes written.
func (c *Client) DownloadFromLink(ctx context.Context, link string, w io.Writer, monitor ProgressMonitor) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, encodeFinalSegment(link), http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("webapi: creating download request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webapi: download request: %w: %w", transportSentinel(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errorFromResponse(resp)
	}

	if monitor != nil {
		if resp.ContentLength < 0 {
			return 0, fmt.Errorf("webapi: download response missing Content-Length: %w", ErrMalformedResponse)
		}

		if tr, ok := monitor.(TotalSizeReporter); ok {
			tr.OnTotalSize(resp.ContentLength)
		}

		w = newMonitoredWriter(w, monitor, downloadNotifyInterval, downloadBlockSize)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			c.logger.Debug("download cancelled", slog.Int64("bytes", n))
			return n, err
		}

		return n, fmt.Errorf("webapi: streaming download: %w: %w", transportSentinel(err), err)
	}

	c.logger.Debug("download complete", slog.Int64("bytes", n))

	return n, nil
}

// encodeFinalSegment percent-encodes everything after the last slash of a
// URL, leaving the preceding path untouched.
func encodeFinalSegment(link string) string {
	i := strings.LastIndex(link, "/")
	if i < 0 {
		return link
	}

	return link[:i+1] + url.PathEscape(link[i+1:])
}

// parseQuotedURL extracts a URL from a body of the form "\"http...\"".
// Anything that does not look like a quoted http(s) URL is rejected.
func parseQuotedURL(body []byte) (string, bool) {
	s := strings.TrimSpace(string(body))
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return "", false
	}

	s = s[1 : len(s)-1]
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", false
	}

	return s, true
}
