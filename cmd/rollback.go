package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

var rollbackDescription string

func init() {
	RootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().StringVar(&rollbackDescription, "description", "", "note recorded alongside the rollback")
}

// resetRollbackCommandState resets the rollback command's global state for testing.
func resetRollbackCommandState() {
	rollbackDescription = ""
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback VERSION",
	Short: "Restores the set to an earlier recorded version",
	Long: `Restores the selected set to the state it had at an earlier version.
The rollback is recorded as a new version, so nothing is lost and the
rollback itself can be rolled back.

Example:
  tawa -n payments -e staging rollback 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting rollback command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: version must be a number, got %q", kerrors.ErrValidation, args[0])
		}

		spinner, cleanup := startSpinner("Rolling back...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.Rollback(context.Background(), store.RollbackOptions{
			Scope:            scope,
			TargetSequenceID: target,
			Actor:            resolveActor(),
			Description:      rollbackDescription,
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error() + "\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("tawa history") + " to list versions"
				return nil
			}
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to roll back: %v", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Restored " + scopeLabel(scope) +
			" to version " + ui.Highlight.Sprintf("%d", result.TargetSequenceID) + "\n" +
			ui.Info.Sprint("→") + " Recorded as version " + ui.Highlight.Sprintf("%d", result.SequenceID) + "\n" +
			renderDiff(result.Diff)
		return nil
	},
}
