// Package cache persists the last-known ContentID per (repoID, path) in an
// embedded SQLite database. A cache entry is valid for use without network
// access iff its ContentID equals the server's current one — the engine
// never trusts staleness based on elapsed time, so this store records IDs
// and file placement, nothing about age.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/wingufile/wingu-go/internal/webapi"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// Entry maps one remote path to its last-known ContentID and the local
// bytes cached for it. Files set LocalPath; directories set Listing (the
// serialized dirent array fetched at ContentID) so a valid cache can
// re-render a listing with zero network access.
type Entry struct {
	RepoID    string
	Path      string
	ContentID webapi.ContentID
	LocalPath string
	Listing   []byte
	Size      int64
	UpdatedAt time.Time
}

// Store is the SQLite-backed cache. Safe for concurrent use; SQLite
// serializes writers and WAL mode keeps readers unblocked.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// Open opens (or creates) the cache database at dbPath, applies migrations,
// and prepares the repeated statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening cache database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: prepare statements: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("cache: %s: %w", p, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations.
// Uses the goose v3 Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("cache: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("cache: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("cache: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error

	s.getStmt, err = s.db.PrepareContext(ctx,
		`SELECT content_id, local_path, listing, size, updated_at FROM entries WHERE repo_id = ? AND path = ?`)
	if err != nil {
		return err
	}

	s.putStmt, err = s.db.PrepareContext(ctx,
		`INSERT INTO entries (repo_id, path, content_id, local_path, listing, size, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (repo_id, path) DO UPDATE SET
		   content_id = excluded.content_id,
		   local_path = excluded.local_path,
		   listing = excluded.listing,
		   size = excluded.size,
		   updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}

	s.deleteStmt, err = s.db.PrepareContext(ctx,
		`DELETE FROM entries WHERE repo_id = ? AND path = ?`)
	if err != nil {
		return err
	}

	s.listStmt, err = s.db.PrepareContext(ctx,
		`SELECT path, content_id, local_path, listing, size, updated_at FROM entries WHERE repo_id = ? ORDER BY path`)

	return err
}

// Get returns the cached entry for (repoID, path), or nil if none exists.
func (s *Store) Get(ctx context.Context, repoID, path string) (*Entry, error) {
	e := Entry{RepoID: repoID, Path: path}

	var updatedAt int64

	var listing string

	err := s.getStmt.QueryRowContext(ctx, repoID, path).
		Scan(&e.ContentID, &e.LocalPath, &listing, &e.Size, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "not cached"
	}

	if err != nil {
		return nil, fmt.Errorf("cache: get %s:%s: %w", repoID, path, err)
	}

	e.UpdatedAt = time.Unix(updatedAt, 0)
	if listing != "" {
		e.Listing = []byte(listing)
	}

	return &e, nil
}

// Put inserts or replaces the entry. The ContentID is replaced wholesale —
// concurrent readers of the old value are unaffected.
func (s *Store) Put(ctx context.Context, e *Entry) error {
	_, err := s.putStmt.ExecContext(ctx,
		e.RepoID, e.Path, e.ContentID.String(), e.LocalPath, string(e.Listing), e.Size, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: put %s:%s: %w", e.RepoID, e.Path, err)
	}

	s.logger.Debug("cache entry stored",
		slog.String("repo_id", e.RepoID),
		slog.String("path", e.Path),
		slog.String("oid", e.ContentID.String()),
	)

	return nil
}

// Delete removes the entry for (repoID, path). Deleting a missing entry is
// not an error.
func (s *Store) Delete(ctx context.Context, repoID, path string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, repoID, path); err != nil {
		return fmt.Errorf("cache: delete %s:%s: %w", repoID, path, err)
	}

	return nil
}

// List returns all entries for a repository, ordered by path.
func (s *Store) List(ctx context.Context, repoID string) ([]Entry, error) {
	rows, err := s.listStmt.QueryContext(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("cache: list %s: %w", repoID, err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		e := Entry{RepoID: repoID}

		var updatedAt int64

		var listing string
		if err := rows.Scan(&e.Path, &e.ContentID, &e.LocalPath, &listing, &e.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("cache: scan entry: %w", err)
		}

		e.UpdatedAt = time.Unix(updatedAt, 0)
		if listing != "" {
			e.Listing = []byte(listing)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: iterating entries: %w", err)
	}

	return entries, nil
}

// Close releases prepared statements and the database handle.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.putStmt, s.deleteStmt, s.listStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}
