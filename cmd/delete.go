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
	RootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:     "delete KEY",
	Aliases: []string{"rm"},
	Short:   "Deletes one variable",
	Long: `Deletes one variable from the selected set.

The deletion is recorded as a new version, so the previous value stays
reachable through 'tawa history' and 'tawa rollback'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting delete command")
		key := args[0]

		scope, err := requireScope()
		if err != nil {
			return err
		}

		spinner, cleanup := startSpinner("Deleting variable...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.Delete(context.Background(), store.DeleteOptions{
			Scope: scope,
			Key:   key,
			Actor: resolveActor(),
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Variable " + ui.Key.Sprint(key) + " does not exist in " + scopeLabel(scope) + "\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("tawa list") + " to see what is set"
				return nil
			}
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to delete variable: %v", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Deleted " + ui.Key.Sprint(key) + " from " + scopeLabel(scope) + "\n" +
			ui.Info.Sprint("→") + " Recorded as version " + ui.Highlight.Sprintf("%d", result.SequenceID) +
			"; earlier versions remain available via " + ui.Code.Sprint("tawa rollback")
		return nil
	},
}
