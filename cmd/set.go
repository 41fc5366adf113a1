package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
	"github.com/tawa-dev/tawa/internal/utils"
	"github.com/tawa-dev/tawa/internal/vault"
)

var setDescription string

func init() {
	setCmd.Flags().StringVar(&setDescription, "description", "", "history entry description (default \"Added KEY\" or \"Updated KEY\")")
	RootCmd.AddCommand(setCmd)
}

// resetSetCommandState resets the set command's global state for testing.
func resetSetCommandState() {
	setDescription = ""
}

var setCmd = &cobra.Command{
	Use:   "set KEY [VALUE]",
	Short: "Creates or updates one variable",
	Long: `Creates or updates one variable in the selected set.

When VALUE is omitted, the value is read from stdin: a hidden prompt on a
terminal (keeps secrets out of shell history), or piped data otherwise.

Examples:
  tawa -n payments -e staging set LOG_LEVEL debug
  tawa -n payments -e staging set DATABASE_PASSWORD
  openssl rand -hex 32 | tawa -n payments -e staging set SESSION_KEY`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting set command")
		key := args[0]

		scope, err := requireScope()
		if err != nil {
			return err
		}

		value, err := resolveSetValue(args)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read value: %v", err)
		}

		spinner, cleanup := startSpinner("Setting variable...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.Set(context.Background(), store.SetOptions{
			Scope:       scope,
			Key:         key,
			Value:       value,
			Actor:       resolveActor(),
			Description: setDescription,
		})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set variable: %v", err)
		}

		verb := "Added"
		if result.Action == vault.ActionUpdate {
			verb = "Updated"
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " " + verb + " " + ui.Key.Sprint(key) + " in " + scopeLabel(scope) + "\n" +
			ui.Info.Sprint("→") + " Recorded as version " + ui.Highlight.Sprintf("%d", result.SequenceID)
		return nil
	},
}

// resolveSetValue returns the variable value: the positional argument when
// given, otherwise a hidden terminal prompt, otherwise piped stdin. A piped
// value keeps a single trailing newline off, matching shell command
// substitution.
func resolveSetValue(args []string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}

	if utils.IsTerminal() {
		value, err := utils.ReadPassphrase("Value for " + args[0] + ": ")
		if err != nil {
			return "", err
		}
		return string(value), nil
	}

	data, err := utils.ReadStdin()
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
