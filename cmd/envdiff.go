package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

func init() {
	RootCmd.AddCommand(envdiffCmd)
}

var envdiffCmd = &cobra.Command{
	Use:   "envdiff ENV_A ENV_B",
	Short: "Compares two environments within one namespace",
	Long: `Compares the variable sets of two environments within the selected
namespace. The report reads as the change needed to turn ENV_A into ENV_B.

Example:
  tawa -n payments envdiff staging production`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting envdiff command")
		if namespace == "" {
			return fmt.Errorf("%w: --namespace selects the namespace to compare within (e.g. tawa -n payments envdiff staging production)", kerrors.ErrValidation)
		}

		spinner, cleanup := startSpinner("Comparing environments...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.DiffEnvironments(context.Background(), store.DiffEnvironmentsOptions{
			Namespace:    namespace,
			EnvironmentA: args[0],
			EnvironmentB: args[1],
			Actor:        resolveActor(),
		})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to compare environments: %v", err)
		}

		spinner.FinalMSG = fmt.Sprintf("Changes from %s to %s\n",
			ui.Highlight.Sprint(result.Namespace+"/"+result.EnvironmentA),
			ui.Highlight.Sprint(result.Namespace+"/"+result.EnvironmentB)) +
			renderDiff(result.Diff)
		return nil
	},
}
