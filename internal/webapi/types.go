package webapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ContentID is the opaque identifier for the current content hash of a
// directory or file as known to the server. Equality of ContentIDs is the
// sole cache-validity test; timestamps are never trusted for that decision.
// The empty string means "not known locally" (first fetch).
type ContentID string

func (id ContentID) String() string { return string(id) }

// DirentKind distinguishes files from subdirectories in a listing.
type DirentKind int

const (
	DirentFile DirentKind = iota
	DirentDir
)

func (k DirentKind) String() string {
	if k == DirentDir {
		return "dir"
	}

	return "file"
}

// Dirent is one entry within a directory listing. Immutable once
// constructed; listings are discarded and rebuilt wholesale on every
// successful fetch, never diffed incrementally.
type Dirent struct {
	ID         ContentID
	Kind       DirentKind
	Name       string
	Size       int64 // files only, 0 for directories
	ModifiedAt time.Time
}

// IsDir reports whether the entry is a subdirectory.
func (d Dirent) IsDir() bool { return d.Kind == DirentDir }

// DirectoryListing is an ordered directory listing tagged with the
// ContentID it was fetched at.
type DirectoryListing struct {
	ID      ContentID
	Entries []Dirent
}

// Repo is one library on the server.
type Repo struct {
	ID         string
	Name       string
	Size       int64
	ModifiedAt time.Time
	Encrypted  bool
}

// direntResponse mirrors one element of the server's dirent JSON array.
// Unexported — callers see Dirent via toDirent normalization.
type direntResponse struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Mtime int64  `json:"mtime"`
}

func (r direntResponse) toDirent() Dirent {
	d := Dirent{
		ID:         ContentID(r.ID),
		Name:       r.Name,
		ModifiedAt: time.Unix(r.Mtime, 0),
	}

	if r.Type == "file" {
		d.Kind = DirentFile
		d.Size = r.Size
	} else {
		d.Kind = DirentDir
	}

	return d
}

// repoResponse mirrors one element of the server's repo JSON array.
type repoResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Mtime     int64  `json:"mtime"`
	Encrypted bool   `json:"encrypted"`
}

func (r repoResponse) toRepo() Repo {
	return Repo{
		ID:         r.ID,
		Name:       r.Name,
		Size:       r.Size,
		ModifiedAt: time.Unix(r.Mtime, 0),
		Encrypted:  r.Encrypted,
	}
}

// parseListing decodes a dirent JSON array into a DirectoryListing tagged
// with the given ContentID. An empty body yields an empty listing — the
// server sends "" for a freshly created directory.
func parseListing(body io.Reader, id ContentID, logger *slog.Logger) (*DirectoryListing, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("webapi: reading listing body: %w: %w", ErrNetwork, err)
	}

	listing := &DirectoryListing{ID: id}
	if len(raw) == 0 {
		return listing, nil
	}

	var entries []direntResponse
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("webapi: decoding listing: %w: %w", ErrMalformedResponse, err)
	}

	listing.Entries = make([]Dirent, 0, len(entries))
	for _, e := range entries {
		listing.Entries = append(listing.Entries, e.toDirent())
	}

	logger.Debug("parsed directory listing",
		slog.String("oid", id.String()),
		slog.Int("entries", len(listing.Entries)),
	)

	return listing, nil
}
