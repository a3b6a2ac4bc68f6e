package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wingufile/wingu-go/internal/webapi"
)

func newReposCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List libraries on the server",
		RunE:  runRepos,
	}
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <repo-id>",
		Short: "Unlock an encrypted library",
		Args:  cobra.ExactArgs(1),
		RunE:  runPasswd,
	}
}

// reposJSONItem is the JSON output schema for a single library.
type reposJSONItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Encrypted  bool   `json:"encrypted"`
	ModifiedAt string `json:"modified_at"`
}

func runRepos(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	session, _, err := newSession(logger)
	if err != nil {
		return err
	}

	repos, err := session.Client().GetRepos(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing libraries: %w", err)
	}

	if flagJSON {
		return printReposJSON(repos)
	}

	printReposTable(repos)

	return nil
}

func printReposJSON(repos []webapi.Repo) error {
	out := make([]reposJSONItem, 0, len(repos))
	for i := range repos {
		out = append(out, reposJSONItem{
			ID:         repos[i].ID,
			Name:       repos[i].Name,
			Size:       repos[i].Size,
			Encrypted:  repos[i].Encrypted,
			ModifiedAt: repos[i].ModifiedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printReposTable(repos []webapi.Repo) {
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].Name < repos[j].Name
	})

	headers := []string{"NAME", "ID", "SIZE", "MODIFIED"}
	rows := make([][]string, 0, len(repos))

	for i := range repos {
		name := repos[i].Name
		if repos[i].Encrypted {
			name += " (encrypted)"
		}

		rows = append(rows, []string{
			name,
			repos[i].ID,
			formatSize(repos[i].Size),
			formatTime(repos[i].ModifiedAt),
		})
	}

	printTable(os.Stdout, headers, rows)
}

func runPasswd(cmd *cobra.Command, args []string) error {
	repoID := args[0]
	logger := buildLogger()

	session, _, err := newSession(logger)
	if err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	if err := session.SetRepoPassword(cmd.Context(), repoID, password); err != nil {
		var authErr *webapi.AuthError
		if errors.As(err, &authErr) && authErr.StatusCode == webapi.StatusPasswordRequired {
			return fmt.Errorf("wrong library password")
		}

		return fmt.Errorf("unlocking library: %w", err)
	}

	statusf("Library unlocked.\n")

	return nil
}
