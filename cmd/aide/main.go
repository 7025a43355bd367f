package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidekit/aide/internal/store"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "aide",
		Short: "Aide - conversational assistant for calendar and email",
		Long: `aide tracks meetings and emails produced by a conversational agent.

It persists every meeting and send attempt, gates risky actions behind
human approval, and serves the records over HTTP and MCP.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newAuthCmd(),
		newMeetingsCmd(),
		newEmailsCmd(),
		newStatsCmd(),
		newBackupCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("aide version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize aide tracking in current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			dataDir, err := store.EnsureDataDir(root)
			if err != nil {
				return err
			}
			if err := store.EnsureGitignore(dataDir); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "initialized",
					"path":   dataDir,
				})
			} else {
				fmt.Printf("Initialized .aide/ in %s\n", root)
			}
			return nil
		},
	}
}

// openStore opens the record store under root's data directory,
// creating it if needed.
func openStore(root string, logger *slog.Logger) (*store.Store, error) {
	dataDir, err := store.EnsureDataDir(root)
	if err != nil {
		return nil, err
	}
	return store.Open(dataDir, logger)
}

// newLogger builds a text slog logger at the given level, writing to
// stderr so stdout stays clean for command output.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// quietLogger discards all log output, for commands whose stdout is
// structured.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
