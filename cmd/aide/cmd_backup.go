package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidekit/aide/internal/backup"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export meetings and emails to a backup file",
		Long: `Backup all tracked meetings and email records to a JSON file.

Default location: .aide/backups/aide-backup-YYYYMMDD-HHMMSS.json
Keeps the last 10 backups with automatic rotation.

Examples:
  aide backup                           # Backup to default location
  aide backup --output my-backup.json   # Backup to specific file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			st, err := openStore(root, quietLogger())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			rotateDir := ""
			if outputPath == "" {
				dir, err := backup.DefaultBackupDir(st)
				if err != nil {
					return err
				}
				outputPath = backup.GenerateBackupPath(dir)
				rotateDir = dir
			}

			bundle, err := backup.Create(st, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			if rotateDir != "" {
				if err := backup.RotateBackups(rotateDir, 10); err != nil {
					fmt.Fprintf(os.Stderr, "warning: failed to rotate backups: %v\n", err)
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"path":          outputPath,
					"meeting_count": len(bundle.Meetings),
					"email_count":   len(bundle.Emails),
				})
			}
			fmt.Printf("Backup created: %d meetings, %d emails\n", len(bundle.Meetings), len(bundle.Emails))
			fmt.Printf("  Path: %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Backup file path (default: .aide/backups/...)")
	cmd.AddCommand(newRestoreCmd())
	return cmd
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace current records with a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			st, err := openStore(root, quietLogger())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			bundle, err := backup.Restore(st, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d meetings and %d emails from %s\n",
				len(bundle.Meetings), len(bundle.Emails), args[0])
			return nil
		},
	}
}
