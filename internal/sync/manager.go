package sync

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	gosync "sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/wingufile/wingu-go/internal/webapi"
)

// defaultPullWorkers bounds concurrent downloads when no config is provided.
const defaultPullWorkers = 4

// MonitorFactory produces a progress monitor for a single transfer, keyed
// by the remote path. May return nil for unmonitored transfers.
type MonitorFactory func(remotePath string) webapi.ProgressMonitor

// Report summarizes a PullDirectory run. Skipped entries carry their
// errors so callers can render them after the pool drains.
type Report struct {
	Fetched int
	Cached  int
	Skipped int
	Bytes   int64
	Errors  []PullError
}

// PullError records a per-file failure that did not abort the run.
type PullError struct {
	Path string
	Err  error
}

// Manager dispatches recursive directory pulls through a bounded worker
// pool. Directory listings are resolved sequentially (they are cheap and
// cache-aware); file transfers run in parallel.
type Manager struct {
	engine  *Engine
	workers int
	logger  *slog.Logger
}

// NewManager creates a Manager. workers <= 0 selects the default.
func NewManager(engine *Engine, workers int, logger *slog.Logger) *Manager {
	if workers <= 0 {
		workers = defaultPullWorkers
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{engine: engine, workers: workers, logger: logger}
}

// pullItem is one file to fetch, with its resolved local destination.
type pullItem struct {
	remotePath string
	localPath  string
}

// PullDirectory mirrors repoID:remoteDir into localDir. Unchanged files
// are skipped via the content cache. Cancellation aborts the whole pool;
// any other per-file error is recorded in the report and the remaining
// files continue.
func (m *Manager) PullDirectory(ctx context.Context, repoID, remoteDir, localDir string, monitors MonitorFactory) (*Report, error) {
	items, err := m.collect(ctx, repoID, remoteDir, localDir)
	if err != nil {
		return nil, err
	}

	m.logger.Info("pull: starting",
		slog.String("repo_id", repoID),
		slog.String("dir", remoteDir),
		slog.Int("files", len(items)),
		slog.Int("workers", m.workers),
	)

	report := &Report{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	var mu gosync.Mutex

	for _, item := range items {
		g.Go(func() error {
			var monitor webapi.ProgressMonitor
			if monitors != nil {
				monitor = monitors(item.remotePath)
			}

			result, err := m.engine.FetchFile(gctx, repoID, item.remotePath, item.localPath, monitor)
			if err != nil {
				if errors.Is(err, webapi.ErrCancelled) {
					return err
				}

				mu.Lock()
				report.Skipped++
				report.Errors = append(report.Errors, PullError{Path: item.remotePath, Err: err})
				mu.Unlock()

				m.logger.Warn("pull: file skipped",
					slog.String("path", item.remotePath),
					slog.String("error", err.Error()),
				)

				return nil
			}

			mu.Lock()
			if result.WasCached {
				report.Cached++
			} else {
				report.Fetched++
				report.Bytes += result.Size
			}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	return report, nil
}

// collect walks the remote tree breadth-first, resolving each directory
// through the cache and accumulating the files to fetch. Entry names are
// NFC-normalized before being used as local path components so macOS and
// Linux checkouts of the same library agree on filenames.
func (m *Manager) collect(ctx context.Context, repoID, remoteDir, localDir string) ([]pullItem, error) {
	type dirPair struct {
		remote string
		local  string
	}

	var items []pullItem

	queue := []dirPair{{remote: remoteDir, local: localDir}}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		listing, err := m.engine.ResolveDirectory(ctx, repoID, dir.remote)
		if err != nil {
			return nil, err
		}

		for _, entry := range listing.Entries {
			name := norm.NFC.String(entry.Name)
			remote := path.Join(dir.remote, entry.Name)
			local := filepath.Join(dir.local, name)

			if entry.IsDir() {
				queue = append(queue, dirPair{remote: remote, local: local})
				continue
			}

			items = append(items, pullItem{remotePath: remote, localPath: local})
		}
	}

	return items, nil
}
