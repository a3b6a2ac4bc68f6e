package webapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// uploadAttempts bounds the whole-flow upload retry: on a protocol-level
// failure the upload link is re-fetched and the body rebuilt and resent
// exactly once. Cancellation never retries (see Retry).
const uploadAttempts = 2

const crlf = "\r\n"

// boundaryBytes is the random length of a per-request multipart boundary.
const boundaryBytes = 12

// UploadFile uploads a new file into parentDir and returns the server's
// response body unparsed (serialized metadata including the new content ID).
func (c *Client) UploadFile(ctx context.Context, repoID, parentDir, localPath string, monitor ProgressMonitor) (string, error) {
	return c.uploadCommon(ctx, repoID, parentDir, localPath, false, monitor)
}

// UpdateFile uploads a new version of an existing file in parentDir.
// Same contract as UploadFile.
func (c *Client) UpdateFile(ctx context.Context, repoID, parentDir, localPath string, monitor ProgressMonitor) (string, error) {
	return c.uploadCommon(ctx, repoID, parentDir, localPath, true, monitor)
}

func (c *Client) uploadCommon(ctx context.Context, repoID, parentDir, localPath string, update bool, monitor ProgressMonitor) (string, error) {
	var result string

	err := Retry(uploadAttempts, func() error {
		link, err := c.GetUploadLink(ctx, repoID, update)
		if err != nil {
			return err
		}

		result, err = c.uploadToLink(ctx, link, parentDir, localPath, update, monitor)

		return err
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

// GetUploadLink fetches a one-time upload URL. update selects the
// update-link endpoint variant (new version of an existing file) over the
// upload-link one (new file).
func (c *Client) GetUploadLink(ctx context.Context, repoID string, update bool) (string, error) {
	endpoint := "/api2/repos/" + repoID + "/upload-link/"
	if update {
		endpoint = "/api2/repos/" + repoID + "/update-link/"
	}

	resp, err := c.Get(ctx, endpoint, nil, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("webapi: reading upload link: %w: %w", ErrNetwork, err)
	}

	link, ok := parseQuotedURL(body)
	if !ok {
		return "", fmt.Errorf("webapi: upload link response not understood: %w", ErrUnknown)
	}

	return link, nil
}

// uploadToLink posts the file as multipart/form-data to a resolved upload
// URL. The body is built by hand so its total length can be declared up
// front — without an explicit Content-Length some client runtimes buffer
// the entire body in memory, which is prohibitive for large files.
//
// Part order is fixed by the server: the routing form field first
// (target_file for updates, parent_dir for new uploads), then the file part
// with a fixed text/plain content type the server tolerates for any file,
// then the closing boundary.
func (c *Client) uploadToLink(ctx context.Context, link, parentDir, localPath string, update bool, monitor ProgressMonitor) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("webapi: opening %s for upload: %w: %w", localPath, ErrUnknown, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("webapi: stat %s: %w: %w", localPath, ErrUnknown, err)
	}

	boundary := newBoundary()
	fileName := filepath.Base(localPath)
	prologue := buildPrologue(boundary, parentDir, fileName, update)
	epilogue := crlf + "--" + boundary + "--" + crlf
	totalLen := int64(len(prologue)) + info.Size() + int64(len(epilogue))

	var content io.Reader = f
	if monitor != nil {
		content = newMonitoredReader(f, monitor, uploadNotifyInterval, uploadBlockSize)
	}

	body := io.MultiReader(
		bytes.NewReader(prologue),
		content,
		strings.NewReader(epilogue),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, body)
	if err != nil {
		return "", fmt.Errorf("webapi: creating upload request: %w", err)
	}

	req.ContentLength = totalLen
	req.Header.Set("Content-Type", "multipart/form-data;boundary="+boundary)
	req.Header.Set("Connection", "close")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("uploading file",
		slog.String("name", fileName),
		slog.Int64("content_length", totalLen),
		slog.Bool("update", update),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			c.logger.Debug("upload cancelled", slog.String("name", fileName))
			return "", fmt.Errorf("webapi: upload of %s: %w", fileName, ErrCancelled)
		}

		return "", fmt.Errorf("webapi: upload request: %w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorFromResponse(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("webapi: reading upload response: %w: %w", ErrNetwork, err)
	}

	c.logger.Info("upload complete",
		slog.String("name", fileName),
		slog.Int64("size", info.Size()),
	)

	return string(respBody), nil
}

// buildPrologue assembles everything that precedes the file bytes: the
// routing form field and the file part headers.
func buildPrologue(boundary, parentDir, fileName string, update bool) []byte {
	var b strings.Builder

	b.WriteString("--" + boundary + crlf)

	if update {
		// target_file routes an update to the existing file's full path.
		b.WriteString(`Content-Disposition: form-data; name="target_file"` + crlf)
		b.WriteString(crlf)
		b.WriteString(path.Join(parentDir, fileName) + crlf)
	} else {
		// parent_dir routes a new upload into the target directory.
		b.WriteString(`Content-Disposition: form-data; name="parent_dir"` + crlf)
		b.WriteString(crlf)
		b.WriteString(parentDir + crlf)
	}

	b.WriteString("--" + boundary + crlf)
	b.WriteString(`Content-Disposition: form-data; name="file";filename="` + fileName + `"` + crlf)
	b.WriteString("Content-Type: text/plain" + crlf)
	b.WriteString(crlf)

	return []byte(b.String())
}

// newBoundary returns a random multipart boundary, fixed for one request.
func newBoundary() string {
	b := make([]byte, boundaryBytes)
	_, _ = rand.Read(b) //nolint:errcheck // crypto/rand.Read does not fail

	return "------WinguGoBoundary" + hex.EncodeToString(b)
}
