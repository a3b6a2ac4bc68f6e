package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/wingufile/wingu-go/internal/cache"
	"github.com/wingufile/wingu-go/internal/webapi"
)

// Engine performs cache-aware transfers. It holds no per-transfer state:
// each FetchFile/UploadFile call is a fresh instance of the transfer state
// machine, and concurrent calls on different paths are independent. Two
// concurrent operations on the same (repoID, path) are not coordinated
// here — callers must serialize per path if they need at-most-one-in-flight.
type Engine struct {
	dirs      DirectoryResolver
	downloads Downloader
	uploads   Uploader
	store     *cache.Store
	limiter   *BandwidthLimiter
	logger    *slog.Logger
}

// New creates an Engine. limiter may be nil (unlimited bandwidth).
func New(
	dirs DirectoryResolver,
	downloads Downloader,
	uploads Uploader,
	store *cache.Store,
	limiter *BandwidthLimiter,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		dirs:      dirs,
		downloads: downloads,
		uploads:   uploads,
		store:     store,
		limiter:   limiter,
		logger:    logger,
	}
}

// ListingResult is the outcome of a directory resolution. WasCached means
// the server confirmed the cached ContentID is current and Entries were
// served from the local cache without a listing body.
type ListingResult struct {
	DirID     webapi.ContentID
	Entries   []webapi.Dirent
	WasCached bool
}

// FetchResult is the outcome of a file fetch. WasCached means the content
// IDs matched and no byte transfer was performed.
type FetchResult struct {
	FileID    webapi.ContentID
	LocalPath string
	Size      int64
	WasCached bool
}

// ResolveDirectory fetches the listing of repoID:dirPath, short-circuiting
// on the cached ContentID. Fresh listings are persisted to the cache store
// wholesale (old listing discarded, never diffed) under the new ID.
func (e *Engine) ResolveDirectory(ctx context.Context, repoID, dirPath string) (*ListingResult, error) {
	var cachedID webapi.ContentID

	entry, err := e.store.Get(ctx, repoID, dirPath)
	if err != nil {
		e.logger.Warn("cache lookup failed, fetching unconditionally",
			slog.String("path", dirPath),
			slog.String("error", err.Error()),
		)
	}

	// Only claim a cached ID when we can actually re-render from it.
	if entry != nil && len(entry.Listing) > 0 {
		cachedID = entry.ContentID
	}

	currentID, listing, err := e.dirs.GetDirents(ctx, repoID, dirPath, cachedID)
	if err != nil {
		return nil, err
	}

	if listing == nil {
		// Server confirmed the cache is current; the body was null by contract.
		entries, decErr := decodeListing(entry.Listing)
		if decErr != nil {
			return nil, decErr
		}

		return &ListingResult{DirID: currentID, Entries: entries, WasCached: true}, nil
	}

	blob, err := encodeListing(listing.Entries)
	if err != nil {
		return nil, err
	}

	if putErr := e.store.Put(ctx, &cache.Entry{
		RepoID:    repoID,
		Path:      dirPath,
		ContentID: currentID,
		Listing:   blob,
	}); putErr != nil {
		e.logger.Warn("failed to cache directory listing",
			slog.String("path", dirPath),
			slog.String("error", putErr.Error()),
		)
	}

	return &ListingResult{DirID: currentID, Entries: listing.Entries}, nil
}

// FetchFile downloads repoID:filePath into localDest. The download link is
// always re-resolved (it is short-lived), but the byte transfer is skipped
// when the server's current file ID matches the cached one and the local
// file is still in place.
//
// The stream lands in a temp file next to the destination and is renamed
// into place on success, so a cancelled or failed transfer leaves the
// destination absent or unchanged — never a partial file.
func (e *Engine) FetchFile(ctx context.Context, repoID, filePath, localDest string, monitor webapi.ProgressMonitor) (*FetchResult, error) {
	entry, err := e.store.Get(ctx, repoID, filePath)
	if err != nil {
		e.logger.Warn("cache lookup failed, downloading unconditionally",
			slog.String("path", filePath),
			slog.String("error", err.Error()),
		)
	}

	link, fileID, err := e.downloads.GetDownloadLink(ctx, repoID, filePath)
	if err != nil {
		return nil, err
	}

	if entry != nil && entry.ContentID == fileID {
		if _, statErr := os.Stat(localDest); statErr == nil {
			e.logger.Debug("file is cached",
				slog.String("repo_id", repoID),
				slog.String("path", filePath),
				slog.String("oid", fileID.String()),
			)

			return &FetchResult{FileID: fileID, LocalPath: localDest, Size: entry.Size, WasCached: true}, nil
		}
	}

	e.logger.Debug("file will be downloaded",
		slog.String("repo_id", repoID),
		slog.String("path", filePath),
		slog.String("latest", fileID.String()),
	)

	size, err := e.streamToFile(ctx, link, localDest, monitor)
	if err != nil {
		return nil, err
	}

	if putErr := e.store.Put(ctx, &cache.Entry{
		RepoID:    repoID,
		Path:      filePath,
		ContentID: fileID,
		LocalPath: localDest,
		Size:      size,
	}); putErr != nil {
		// The transfer itself succeeded; a failed cache write only costs a
		// re-download next time.
		e.logger.Warn("failed to record cache entry",
			slog.String("path", filePath),
			slog.String("error", putErr.Error()),
		)
	}

	return &FetchResult{FileID: fileID, LocalPath: localDest, Size: size}, nil
}

// streamToFile downloads link into localDest via a colocated temp file and
// atomic rename. Every exit path removes the temp file.
func (e *Engine) streamToFile(ctx context.Context, link, localDest string, monitor webapi.ProgressMonitor) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localDest), 0o755); err != nil { //nolint:mnd // standard dir perms
		return 0, fmt.Errorf("sync: creating parent dir for %s: %w: %w", localDest, webapi.ErrTransfer, err)
	}

	partial := localDest + ".partial"

	f, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("sync: creating %s: %w: %w", partial, webapi.ErrTransfer, err)
	}

	var w io.Writer = f
	if e.limiter != nil {
		w = e.limiter.Writer(ctx, w)
	}

	n, err := e.downloads.DownloadFromLink(ctx, link, w, monitor)
	if err != nil {
		f.Close()
		os.Remove(partial)

		return 0, err
	}

	if err := f.Close(); err != nil {
		os.Remove(partial)

		return 0, fmt.Errorf("sync: closing %s: %w: %w", partial, webapi.ErrTransfer, err)
	}

	if err := os.Rename(partial, localDest); err != nil {
		// A rename failure is a local filesystem race, not a network error.
		os.Remove(partial)

		return 0, fmt.Errorf("sync: renaming %s into place: %w: %w", partial, webapi.ErrTransfer, err)
	}

	return n, nil
}

// UploadFile uploads a new file into parentDir and returns the server's
// response body unparsed. The cached parent listing is invalidated so the
// next resolution sees the new entry.
func (e *Engine) UploadFile(ctx context.Context, repoID, parentDir, localPath string, monitor webapi.ProgressMonitor) (string, error) {
	result, err := e.uploads.UploadFile(ctx, repoID, parentDir, localPath, monitor)
	if err != nil {
		return "", err
	}

	e.invalidate(ctx, repoID, parentDir)

	return result, nil
}

// UpdateFile uploads a new version of an existing file. Both the parent
// listing and the file's own cache entry are invalidated — its ContentID
// changed on the server.
func (e *Engine) UpdateFile(ctx context.Context, repoID, parentDir, localPath string, monitor webapi.ProgressMonitor) (string, error) {
	result, err := e.uploads.UpdateFile(ctx, repoID, parentDir, localPath, monitor)
	if err != nil {
		return "", err
	}

	e.invalidate(ctx, repoID, parentDir)
	e.invalidate(ctx, repoID, path.Join(parentDir, filepath.Base(localPath)))

	return result, nil
}

func (e *Engine) invalidate(ctx context.Context, repoID, remotePath string) {
	if err := e.store.Delete(ctx, repoID, remotePath); err != nil {
		e.logger.Warn("failed to invalidate cache entry",
			slog.String("repo_id", repoID),
			slog.String("path", remotePath),
			slog.String("error", err.Error()),
		)
	}
}

func encodeListing(entries []webapi.Dirent) ([]byte, error) {
	blob, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("sync: encoding listing for cache: %w", err)
	}

	return blob, nil
}

func decodeListing(blob []byte) ([]webapi.Dirent, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	var entries []webapi.Dirent
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, fmt.Errorf("sync: decoding cached listing: %w", err)
	}

	return entries, nil
}
