// Package main provides the snipvault CLI entry point.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dshills/snipvault/internal/config"
)

// Set at build time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable or invalid config)
)

var (
	configPath string
	userFlag   string

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors is set, so cobra leaves printing to us
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		var cfgErr configError
		if errors.As(err, &cfgErr) {
			os.Exit(ExitConfigError)
		}
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "snipvault",
	Short: "Code snippet manager with keyword and semantic search",
	Long: `snipvault stores code snippets per user and finds them again by keyword
substring or by embedding similarity.

Interfaces:
  serve   - JSON HTTP API
  mcp     - Model Context Protocol server on stdio for AI coding assistants

Configuration is read from --config, $SNIPVAULT_CONFIG or
$XDG_CONFIG_HOME/snipvault/config.yml, then overridden by the environment
(a .env file in the working directory is loaded first).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id for local commands (default: mcp.user_id)")
	rootCmd.Version = Version
}

type configError struct{ error }

func (e configError) Unwrap() error { return e.error }

func loadConfig(cmd *cobra.Command, args []string) error {
	// A missing .env is normal
	_ = godotenv.Load()

	loaded, err := config.Load(configPath)
	if err != nil {
		return configError{err}
	}
	cfg = loaded

	// stdout belongs to command output and the MCP transport
	logger = cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return nil
}

// currentUser resolves the identity for commands run on the local machine
func currentUser() string {
	if userFlag != "" {
		return userFlag
	}
	return cfg.MCP.UserID
}
