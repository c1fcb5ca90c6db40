// Package cli implements the dispatch command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dispatch-cms/dispatch/internal/client"
	"github.com/dispatch-cms/dispatch/internal/config"
	"github.com/dispatch-cms/dispatch/internal/ui"
)

// Version is set at build time via -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var (
	// Global flags
	configPath string
	apiURLFlag string
	jsonOutput bool
	verbose    bool

	// Resolved values
	cfg *config.Config
	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch - content manager for news publications",
	Long: `dispatch runs the Dispatch content API and talks to it from the terminal:
log in, list and search entities, create and update records, and pick tags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		switch cmd.Name() {
		case "serve", "version", "help", "completion":
			return nil
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadOrDefault(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv()
		if apiURLFlag != "" {
			cfg.APIURL = apiURLFlag
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		api = client.New(cfg.APIURL,
			client.WithRateLimit(cfg.RateLimit, int(cfg.RateLimit)),
			client.WithLogger(logger),
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.dispatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Dispatch server URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log API requests to stderr")
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Error.Render("error: "+err.Error()))
	}
	return err
}

// requireToken returns the stored auth token or an error telling the user to log in.
func requireToken() (string, error) {
	if !cfg.HasToken() {
		return "", errors.New("not logged in\n\nRun 'dispatch login' first")
	}
	return cfg.Token, nil
}

// explainAuth rewrites a 401 into a hint to log in again.
func explainAuth(err error) error {
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%w\n\nRun 'dispatch login' to get a new token", err)
	}
	return err
}
