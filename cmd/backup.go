package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

var backupOutputPath string

func init() {
	RootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVarP(&backupOutputPath, "output", "o", "", "archive path (default tawa-store-YYYY-MM-DD.tar.gz)")
}

// resetBackupCommandState resets the backup command's global state for testing.
func resetBackupCommandState() {
	backupOutputPath = ""
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archives the whole store as a tar.gz",
	Long: `Archives every variable set, history log, and the audit trail into a
gzip-compressed tarball. The encryption key lives outside the store and
is never included; keep its backup separately or the archive is
unreadable.

Examples:
  tawa backup
  tawa backup -o /backups/tawa-$(date +%F).tar.gz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting backup command")

		spinner, cleanup := startSpinner("Archiving store...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.Backup(context.Background(), store.BackupOptions{
			OutputPath: backupOutputPath,
			Actor:      resolveActor(),
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrFileNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " The store has nothing to back up yet\n" +
					ui.Info.Sprint("→") + " Add a variable first with " + ui.Code.Sprint("tawa set")
				return nil
			}
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to create backup: %v", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Archived " +
			ui.Highlight.Sprintf("%d", result.FileCount) + " files to " +
			ui.Code.Sprint(result.OutputPath) + "\n" +
			ui.Warning.Sprint("⚠") + " The archive is useless without the encryption key. Back the key up separately."
		return nil
	},
}
