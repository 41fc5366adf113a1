package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/store"
)

func init() {
	RootCmd.AddCommand(getCmd)
}

// getCmd prints the raw value and nothing else, so it composes in scripts:
// DATABASE_URL=$(tawa -n payments -e staging get DATABASE_URL)
var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Prints the value of one variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting get command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		st, _, err := openStore()
		if err != nil {
			return err
		}

		value, err := st.Get(context.Background(), store.GetOptions{
			Scope: scope,
			Key:   args[0],
			Actor: resolveActor(),
		})
		if err != nil {
			return err
		}

		fmt.Println(value)
		return nil
	},
}
