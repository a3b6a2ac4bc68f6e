// Package sync implements the cache-aware transfer engine: conditional
// directory resolution, downloads that skip unchanged content, and uploads
// that invalidate stale cache entries. It composes the webapi client with
// the local cache store and a shared bandwidth limiter.
package sync

import (
	"context"
	"io"

	"github.com/wingufile/wingu-go/internal/webapi"
)

// DirectoryResolver fetches directory listings with content-ID
// short-circuiting. Satisfied by *webapi.Client.
type DirectoryResolver interface {
	GetDirents(ctx context.Context, repoID, dirPath string, cachedID webapi.ContentID) (webapi.ContentID, *webapi.DirectoryListing, error)
}

// Downloader resolves download links and streams file content.
// Satisfied by *webapi.Client.
type Downloader interface {
	GetDownloadLink(ctx context.Context, repoID, filePath string) (string, webapi.ContentID, error)
	DownloadFromLink(ctx context.Context, link string, w io.Writer, monitor webapi.ProgressMonitor) (int64, error)
}

// Uploader pushes file content to the server. Satisfied by *webapi.Client.
type Uploader interface {
	UploadFile(ctx context.Context, repoID, parentDir, localPath string, monitor webapi.ProgressMonitor) (string, error)
	UpdateFile(ctx context.Context, repoID, parentDir, localPath string, monitor webapi.ProgressMonitor) (string, error)
}
