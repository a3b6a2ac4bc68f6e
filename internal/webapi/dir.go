package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
)

// oidHeader carries the server's current content ID for the requested
// directory or file. It is the entire staleness signal of the protocol:
// its absence is a protocol error, not an empty result.
const oidHeader = "oid"

// GetRepos lists the libraries visible to the authenticated account.
func (c *Client) GetRepos(ctx context.Context) ([]Repo, error) {
	resp, err := c.Get(ctx, "/api2/repos/", nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []repoResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("webapi: decoding repo list: %w: %w", ErrMalformedResponse, err)
	}

	repos := make([]Repo, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, r.toRepo())
	}

	c.logger.Debug("listed repositories", slog.Int("count", len(repos)))

	return repos, nil
}

// GetDirents fetches the listing of a directory, short-circuiting when the
// content is unchanged. cachedID is the locally known ContentID ("" on first
// fetch); it is sent as a conditional parameter and the server echoes the
// current ID in the oid header regardless of whether content changed.
//
// When the echoed ID equals cachedID the listing is nil — "no change, do not
// re-render". Otherwise the body is parsed into a fresh listing tagged with
// the new ID.
func (c *Client) GetDirents(ctx context.Context, repoID, dirPath string, cachedID ContentID) (ContentID, *DirectoryListing, error) {
	params := url.Values{}
	params.Set("p", dirPath)

	if cachedID != "" {
		params.Set("oid", cachedID.String())
	}

	resp, err := c.Get(ctx, fmt.Sprintf("/api2/repos/%s/dir/", repoID), params, true)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	currentID := ContentID(resp.Header.Get(oidHeader))
	if currentID == "" {
		return "", nil, fmt.Errorf("webapi: directory response missing oid header: %w", ErrMalformedResponse)
	}

	if currentID == cachedID {
		c.logger.Debug("directory is cached",
			slog.String("repo_id", repoID),
			slog.String("path", dirPath),
			slog.String("oid", currentID.String()),
		)

		return currentID, nil, nil
	}

	c.logger.Debug("directory changed on server",
		slog.String("repo_id", repoID),
		slog.String("path", dirPath),
		slog.String("latest", currentID.String()),
		slog.String("cached", cachedID.String()),
	)

	listing, err := parseListing(resp.Body, currentID, c.logger)
	if err != nil {
		return "", nil, err
	}

	return currentID, listing, nil
}

// CreateDirectory creates parentDir/name on the server and returns the new
// directory ContentID together with the reloaded listing of the created
// directory (possibly empty).
func (c *Client) CreateDirectory(ctx context.Context, repoID, parentDir, name string) (ContentID, *DirectoryListing, error) {
	return c.createEntry(ctx, repoID, "/api2/repos/"+repoID+"/dir/", "mkdir", path.Join(parentDir, name))
}

// CreateFile creates an empty file at parentDir/name on the server.
// Same response contract as CreateDirectory.
func (c *Client) CreateFile(ctx context.Context, repoID, parentDir, name string) (ContentID, *DirectoryListing, error) {
	return c.createEntry(ctx, repoID, "/api2/repos/"+repoID+"/file/", "create", path.Join(parentDir, name))
}

func (c *Client) createEntry(ctx context.Context, repoID, apiPath, operation, fullPath string) (ContentID, *DirectoryListing, error) {
	params := url.Values{}
	params.Set("p", fullPath)
	params.Set("reloaddir", "true")

	form := url.Values{}
	form.Set("operation", operation)

	resp, err := c.PostForm(ctx, apiPath, params, form, true)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	newID := ContentID(resp.Header.Get(oidHeader))
	if newID == "" {
		return "", nil, fmt.Errorf("webapi: %s response missing oid header: %w", operation, ErrMalformedResponse)
	}

	listing, err := parseListing(resp.Body, newID, c.logger)
	if err != nil {
		return "", nil, err
	}

	c.logger.Info("created remote entry",
		slog.String("repo_id", repoID),
		slog.String("operation", operation),
		slog.String("path", fullPath),
		slog.String("oid", newID.String()),
	)

	return newID, listing, nil
}
