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

func init() {
	RootCmd.AddCommand(diffCmd)
}

// resetDiffCommandState resets the diff command's global state for testing.
func resetDiffCommandState() {
	// No flags to reset currently.
}

var diffCmd = &cobra.Command{
	Use:   "diff FROM [TO]",
	Short: "Compares two recorded versions of a set",
	Long: `Compares two recorded versions of the selected set. FROM is the
older version number; TO defaults to the latest version.

Example:
  tawa -n payments -e staging diff 3 7`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting diff command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		from, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: version must be a number, got %q", kerrors.ErrValidation, args[0])
		}
		var to int64
		if len(args) == 2 {
			to, err = strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: version must be a number, got %q", kerrors.ErrValidation, args[1])
			}
		}

		spinner, cleanup := startSpinner("Comparing versions...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.DiffVersions(context.Background(), store.DiffVersionsOptions{
			Scope: scope,
			From:  from,
			To:    to,
			Actor: resolveActor(),
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
			return Logger.ErrorfAndReturn("Failed to compare versions: %v", err)
		}

		spinner.FinalMSG = fmt.Sprintf("Changes in %s from version %s to %s\n",
			scopeLabel(scope),
			ui.Highlight.Sprintf("%d", result.From),
			ui.Highlight.Sprintf("%d", result.To)) +
			renderDiff(result.Diff)
		return nil
	},
}
