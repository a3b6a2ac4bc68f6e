package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePerms restricts the account file to owner-only read/write — it holds
// the auth token.
const FilePerms = 0o600

// DirPerms is used when creating the data directory.
const DirPerms = 0o700

// Load reads the saved account from disk. Returns (nil, nil) if the file
// does not exist — not logged in yet.
func Load(path string) (*Account, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("account: reading %s: %w", path, err)
	}

	var a Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("account: decoding %s: %w", path, err)
	}

	if a.ServerURL == "" || a.Email == "" {
		return nil, fmt.Errorf("account: %s missing server or email (re-login required)", path)
	}

	return &a, nil
}

// Save writes the account file atomically (write-to-temp + rename) with
// 0600 permissions. The password field is excluded by its JSON tag; token
// values are never logged.
func Save(path string, a *Account) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("account: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("account: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".account-*.tmp")
	if err != nil {
		return fmt.Errorf("account: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("account: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("account: writing: %w", err)
	}

	// Flush before rename so a power loss cannot leave a truncated account
	// file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("account: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("account: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("account: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the account file. Returns nil if it does not exist.
func Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
