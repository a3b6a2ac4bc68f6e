package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingufile/wingu-go/internal/webapi"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a library directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().StringP("repo", "r", "", "library ID")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote-path> [local-path]",
		Short: "Download a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}

	cmd.Flags().StringP("repo", "r", "", "library ID")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> [remote-dir]",
		Short: "Upload a file",
		Long: `Upload a file into a library directory. By default the file must not
already exist remotely; use --update to upload a new version of an
existing file instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPut,
	}

	cmd.Flags().StringP("repo", "r", "", "library ID")
	cmd.Flags().Bool("update", false, "replace an existing remote file")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}

	cmd.Flags().StringP("repo", "r", "", "library ID")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func newTouchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "touch <path>",
		Aliases: []string{"create"},
		Short:   "Create an empty file",
		Args:    cobra.ExactArgs(1),
		RunE:    runTouch,
	}

	cmd.Flags().StringP("repo", "r", "", "library ID")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

// cleanRemotePath normalizes a remote path to the "/"-rooted form the API
// expects. "" and "/" both mean the library root.
func cleanRemotePath(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/"
	}

	return "/" + trimmed
}

// splitParentAndName splits a remote path into parent directory and name.
// For "/foo/bar/baz" returns ("/foo/bar", "baz").
// For "/baz" returns ("/", "baz").
func splitParentAndName(p string) (string, string) {
	clean := cleanRemotePath(p)

	return path.Dir(clean), path.Base(clean)
}

func runLs(cmd *cobra.Command, args []string) error {
	repoID, err := cmd.Flags().GetString("repo")
	if err != nil {
		return err
	}

	remotePath := "/"
	if len(args) > 0 {
		remotePath = cleanRemotePath(args[0])
	}

	logger := buildLogger()

	engine, store, _, err := newEngine(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := engine.ResolveDirectory(cmd.Context(), repoID, remotePath)
	if err != nil {
		if webapi.IsPasswordRequired(err) {
			return fmt.Errorf("library is locked — run 'wingu-go passwd %s' first", repoID)
		}

		return fmt.Errorf("listing %q: %w", remotePath, err)
	}

	if flagJSON {
		return printDirentsJSON(result.Entries)
	}

	printDirentsTable(result.Entries)

	return nil
}

// lsJSONItem is the JSON output schema for a single entry in ls output.
type lsJSONItem struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	IsDir      bool   `json:"is_dir"`
	ModifiedAt string `json:"modified_at"`
	ID         string `json:"id"`
}

func printDirentsJSON(entries []webapi.Dirent) error {
	out := make([]lsJSONItem, 0, len(entries))
	for i := range entries {
		out = append(out, lsJSONItem{
			Name:       entries[i].Name,
			Size:       entries[i].Size,
			IsDir:      entries[i].IsDir(),
			ModifiedAt: entries[i].ModifiedAt.Format("2006-01-02T15:04:05Z"),
			ID:         entries[i].ID.String(),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printDirentsTable(entries []webapi.Dirent) {
	// Sort: directories first, then alphabetical.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}

		return entries[i].Name < entries[j].Name
	})

	headers := []string{"NAME", "SIZE", "MODIFIED"}
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		name := entries[i].Name
		size := formatSize(entries[i].Size)

		if entries[i].IsDir() {
			name += "/"
			size = "-"
		}

		rows = append(rows, []string{name, size, formatTime(entries[i].ModifiedAt)})
	}

	printTable(os.Stdout, headers, rows)
}

func runGet(cmd *cobra.Command, args []string) error {
	repoID, err := cmd.Flags().GetString("repo")
	if err != nil {
		return err
	}

	remotePath := cleanRemotePath(args[0])

	localPath := path.Base(remotePath)
	if len(args) > 1 {
		localPath = args[1]
	}

	logger := buildLogger()

	engine, store, _, err := newEngine(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := shutdownContext(cmd.Context(), logger)

	monitor := newTerminalMonitor(ctx, remotePath, 0)
	defer monitor.Done()

	result, err := engine.FetchFile(ctx, repoID, remotePath, localPath, monitor)
	if err != nil {
		if errors.Is(err, webapi.ErrCancelled) {
			return fmt.Errorf("download cancelled")
		}

		return fmt.Errorf("downloading %q: %w", remotePath, err)
	}

	monitor.Done()

	if result.WasCached {
		statusf("Already up to date: %s (%s)\n", result.LocalPath, formatSize(result.Size))
		return nil
	}

	statusf("Downloaded %s (%s)\n", result.LocalPath, formatSize(result.Size))

	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	repoID, err := cmd.Flags().GetString("repo")
	if err != nil {
		return err
	}

	update, err := cmd.Flags().GetBool("update")
	if err != nil {
		return err
	}

	localPath := args[0]

	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stating local file: %w", err)
	}

	if fi.IsDir() {
		return fmt.Errorf("%q is a directory, not a file", localPath)
	}

	remoteDir := "/"
	if len(args) > 1 {
		remoteDir = cleanRemotePath(args[1])
	}

	logger := buildLogger()

	engine, store, _, err := newEngine(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := shutdownContext(cmd.Context(), logger)

	label := path.Join(remoteDir, filepath.Base(localPath))
	monitor := newTerminalMonitor(ctx, label, fi.Size())
	defer monitor.Done()

	if update {
		_, err = engine.UpdateFile(ctx, repoID, remoteDir, localPath, monitor)
	} else {
		_, err = engine.UploadFile(ctx, repoID, remoteDir, localPath, monitor)
	}

	if err != nil {
		if errors.Is(err, webapi.ErrCancelled) {
			return fmt.Errorf("upload cancelled")
		}

		return fmt.Errorf("uploading %q: %w", localPath, err)
	}

	monitor.Done()
	statusf("Uploaded %s (%s)\n", label, formatSize(fi.Size()))

	return nil
}

// mkdirJSONOutput is the JSON output schema for mkdir and touch.
type mkdirJSONOutput struct {
	Created string `json:"created"`
	ID      string `json:"id"`
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return runCreate(cmd, args[0], false)
}

func runTouch(cmd *cobra.Command, args []string) error {
	return runCreate(cmd, args[0], true)
}

func runCreate(cmd *cobra.Command, rawPath string, isFile bool) error {
	repoID, err := cmd.Flags().GetString("repo")
	if err != nil {
		return err
	}

	remotePath := cleanRemotePath(rawPath)
	if remotePath == "/" {
		return fmt.Errorf("cannot create the library root")
	}

	parentDir, name := splitParentAndName(remotePath)

	logger := buildLogger()

	session, _, err := newSession(logger)
	if err != nil {
		return err
	}

	var newID webapi.ContentID
	if isFile {
		newID, _, err = session.Client().CreateFile(cmd.Context(), repoID, parentDir, name)
	} else {
		newID, _, err = session.Client().CreateDirectory(cmd.Context(), repoID, parentDir, name)
	}

	if err != nil {
		return fmt.Errorf("creating %q: %w", remotePath, err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(mkdirJSONOutput{Created: remotePath, ID: newID.String()})
	}

	statusf("Created %s\n", remotePath)

	return nil
}
