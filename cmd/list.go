package cmd

import (
	"context"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

var listShowValues bool

func init() {
	listCmd.Flags().BoolVar(&listShowValues, "values", false, "show values instead of value lengths")
	RootCmd.AddCommand(listCmd)
}

// resetListCommandState resets the list command's global state for testing.
func resetListCommandState() {
	listShowValues = false
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Lists the variables in a set",
	Long: `Lists the variables in the selected set, keys sorted.

Values are hidden by default; pass --values to print them, or use
'tawa export' for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting list command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		spinner, cleanup := startSpinner("Listing variables...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		vars, err := st.List(context.Background(), store.ListOptions{
			Scope: scope,
			Actor: resolveActor(),
		})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to list variables: %v", err)
		}

		if len(vars) == 0 {
			spinner.FinalMSG = ui.Muted.Sprint("No variables in ") + scopeLabel(scope) + "\n" +
				ui.Info.Sprint("→") + " Add one with " + ui.Code.Sprint("tawa set KEY VALUE")
			return nil
		}

		keys := make([]string, 0, len(vars))
		for key := range vars {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("Variables in " + scopeLabel(scope) + " " + ui.Muted.Sprintf("%d entries", len(vars)) + "\n")
		for _, key := range keys {
			if listShowValues {
				b.WriteString("  " + ui.Key.Sprint(key) + "=" + vars[key] + "\n")
			} else {
				b.WriteString("  " + ui.Key.Sprint(key) + " " + ui.Muted.Sprintf("%d bytes", len(vars[key])) + "\n")
			}
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}
