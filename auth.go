package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wingufile/wingu-go/internal/account"
	"github.com/wingufile/wingu-go/internal/config"
	"github.com/wingufile/wingu-go/internal/webapi"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a wingufile server",
		RunE:  runLogin,
	}

	cmd.Flags().String("server", "", "server URL, e.g. https://cloud.example.com")
	cmd.Flags().String("email", "", "account email address")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved account and token",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the logged-in account",
		RunE:  runWhoami,
	}
}

// readPassword prompts for a password. On a terminal the input is not
// echoed; otherwise one line is read from stdin, so passwords can be piped
// in scripts.
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")

	if isatty.IsTerminal(os.Stdin.Fd()) {
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return err
	}

	email, err := cmd.Flags().GetString("email")
	if err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	httpClient := webapi.NewHTTPClient(loadedCfg.Network.InsecureSkipVerify)
	session := webapi.NewSession(server, httpClient, email, password, logger)
	session.Client().SetUserAgent(loadedCfg.Network.UserAgent)

	if err := session.LoginWithRetry(cmd.Context()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	acct := &account.Account{
		ServerURL: server,
		Email:     email,
		Token:     session.Token(),
	}

	if err := account.Save(config.DefaultAccountPath(), acct); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}

	logger.Info("login successful", "server", acct.ServerHost(), "email", email)
	statusf("Logged in as %s on %s.\n", email, acct.ServerHost())

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := account.Remove(config.DefaultAccountPath()); err != nil {
		return fmt.Errorf("removing account: %w", err)
	}

	logger.Info("logout successful")
	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Server string `json:"server"`
	Email  string `json:"email"`
	HTTPS  bool   `json:"https"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	acct, err := loadAccount()
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(whoamiOutput{
			Server: acct.ServerURL,
			Email:  acct.Email,
			HTTPS:  acct.IsHTTPS(),
		})
	}

	fmt.Printf("Server: %s\n", acct.ServerURL)
	fmt.Printf("Email:  %s\n", acct.Email)

	return nil
}
