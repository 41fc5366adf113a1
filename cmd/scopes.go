package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/ui"
)

func init() {
	RootCmd.AddCommand(scopesCmd)
}

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "Lists every stored namespace/environment pair",
	Long: `Lists every variable set the store holds, as namespace/environment
pairs sorted by namespace then environment.

Example:
  tawa scopes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting scopes command")

		spinner, cleanup := startSpinner("Listing variable sets...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		scopes, err := st.Scopes(context.Background())
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to list variable sets: %v", err)
		}

		if len(scopes) == 0 {
			spinner.FinalMSG = "No variable sets yet\n" +
				ui.Info.Sprint("→") + " Create one with " + ui.Code.Sprint("tawa -n <namespace> -e <environment> set KEY VALUE")
			return nil
		}

		spinner.FinalMSG = ""
		cleanup()

		for _, scope := range scopes {
			fmt.Println(scope.Namespace + "/" + scope.Environment)
		}
		return nil
	},
}
