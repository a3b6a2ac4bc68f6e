package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wingufile/wingu-go/internal/account"
	"github.com/wingufile/wingu-go/internal/cache"
	"github.com/wingufile/wingu-go/internal/config"
	isync "github.com/wingufile/wingu-go/internal/sync"
	"github.com/wingufile/wingu-go/internal/webapi"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// loadedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var loadedCfg *config.Config

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wingu-go",
		Short:   "Wingufile CLI client",
		Long:    "A fast command-line client for wingufile servers with content-aware caching.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newReposCmd())
	cmd.AddCommand(newPasswdCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newTouchCmd())
	cmd.AddCommand(newPullCmd())

	return cmd
}

// loadConfig loads the effective configuration, preferring --config over
// the platform default path, and stores the result for subcommands.
func loadConfig() error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loadedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the loaded config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. The "auto" format
// selects text output on a terminal and JSON otherwise.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	format := "auto"

	if loadedCfg != nil {
		switch loadedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		if loadedCfg.Logging.LogFormat != "" {
			format = loadedCfg.Logging.LogFormat
		}
	}

	// CLI flags override config (highest priority).
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	useText := format == "text" || (format == "auto" && isatty.IsTerminal(os.Stderr.Fd()))
	if useText {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// loadAccount returns the saved account or an error directing the user to
// log in first.
func loadAccount() (*account.Account, error) {
	acct, err := account.Load(config.DefaultAccountPath())
	if err != nil {
		return nil, err
	}

	if acct == nil || acct.Token == "" {
		return nil, fmt.Errorf("not logged in — run 'wingu-go login' first")
	}

	return acct, nil
}

// newSession builds an authenticated session from the saved account.
func newSession(logger *slog.Logger) (*webapi.Session, *account.Account, error) {
	acct, err := loadAccount()
	if err != nil {
		return nil, nil, err
	}

	httpClient := webapi.NewHTTPClient(loadedCfg.Network.InsecureSkipVerify)

	session := webapi.NewSession(acct.ServerURL, httpClient, acct.Email, "", logger)
	session.SetToken(acct.Token)
	session.Client().SetUserAgent(loadedCfg.Network.UserAgent)

	return session, acct, nil
}

// newEngine builds the transfer engine for the saved account, opening the
// content cache database. The caller must Close the returned store.
func newEngine(logger *slog.Logger) (*isync.Engine, *cache.Store, *webapi.Client, error) {
	session, _, err := newSession(logger)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := cache.Open(config.DefaultCachePath(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening content cache: %w", err)
	}

	limiter, err := isync.NewBandwidthLimiter(loadedCfg.Transfers.BandwidthLimit, logger)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	client := session.Client()
	engine := isync.New(client, client, client, store, limiter, logger)

	return engine, store, client, nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
