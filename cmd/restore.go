package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

func init() {
	RootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore ARCHIVE",
	Short: "Restores the store from a backup archive",
	Long: `Extracts a backup archive into the store directory. Variable sets
present in the archive replace their stored counterparts; sets only in
the store survive untouched. The archive must have been written by
tawa backup with the same encryption key in use.

Example:
  tawa restore tawa-store-2026-08-23.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting restore command")

		spinner, cleanup := startSpinner("Restoring from archive...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.Restore(context.Background(), store.RestoreOptions{
			ArchivePath: args[0],
			Actor:       resolveActor(),
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrFileNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Archive not found: " + ui.Path.Sprint(args[0])
				return nil
			}
			if errors.Is(err, kerrors.ErrInvalidArchive) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error() + "\n" +
					ui.Info.Sprint("→") + " Only archives written by " + ui.Code.Sprint("tawa backup") + " can be restored"
				return nil
			}
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to restore from archive: %v", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Restored " +
			ui.Highlight.Sprintf("%d", result.FileCount) + " files from " +
			ui.Code.Sprint(result.ArchivePath) + "\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("tawa scopes") + " to see what the store now holds"
		return nil
	},
}
