package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	isync "github.com/wingufile/wingu-go/internal/sync"
	"github.com/wingufile/wingu-go/internal/webapi"
)

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <remote-dir> <local-dir>",
		Short: "Mirror a library directory to a local directory",
		Long: `Recursively download a library directory. Files whose content has not
changed since the last pull are skipped via the local content cache, so
repeated pulls only transfer what changed.`,
		Args: cobra.ExactArgs(2),
		RunE: runPull,
	}

	cmd.Flags().StringP("repo", "r", "", "library ID")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

// pullJSONOutput is the JSON output schema for the pull command.
type pullJSONOutput struct {
	Fetched int      `json:"fetched"`
	Cached  int      `json:"cached"`
	Skipped int      `json:"skipped"`
	Bytes   int64    `json:"bytes"`
	Errors  []string `json:"errors,omitempty"`
}

func runPull(cmd *cobra.Command, args []string) error {
	repoID, err := cmd.Flags().GetString("repo")
	if err != nil {
		return err
	}

	remoteDir := cleanRemotePath(args[0])
	localDir := args[1]

	logger := buildLogger()

	engine, store, _, err := newEngine(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := isync.NewManager(engine, loadedCfg.Transfers.ParallelDownloads, logger)

	ctx := shutdownContext(cmd.Context(), logger)

	monitors := func(remotePath string) webapi.ProgressMonitor {
		return newTerminalMonitor(ctx, remotePath, 0)
	}

	report, err := manager.PullDirectory(ctx, repoID, remoteDir, localDir, monitors)
	if err != nil {
		if errors.Is(err, webapi.ErrCancelled) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("pull cancelled")
		}

		if webapi.IsPasswordRequired(err) {
			return fmt.Errorf("library is locked — run 'wingu-go passwd %s' first", repoID)
		}

		return fmt.Errorf("pulling %q: %w", remoteDir, err)
	}

	if flagJSON {
		return printPullJSON(report)
	}

	statusf("Pulled %s: %d fetched (%s), %d unchanged, %d skipped\n",
		remoteDir, report.Fetched, formatSize(report.Bytes), report.Cached, report.Skipped)

	for _, pe := range report.Errors {
		fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", pe.Path, pe.Err)
	}

	return nil
}

func printPullJSON(report *isync.Report) error {
	out := pullJSONOutput{
		Fetched: report.Fetched,
		Cached:  report.Cached,
		Skipped: report.Skipped,
		Bytes:   report.Bytes,
	}

	for _, pe := range report.Errors {
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", pe.Path, pe.Err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
