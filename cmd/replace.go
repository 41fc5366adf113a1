package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
	"github.com/tawa-dev/tawa/internal/utils"
)

var replaceDescription string

func init() {
	replaceCmd.Flags().StringVar(&replaceDescription, "description", "", "history entry description")
	RootCmd.AddCommand(replaceCmd)
}

// resetReplaceCommandState resets the replace command's global state for testing.
func resetReplaceCommandState() {
	replaceDescription = ""
}

var replaceCmd = &cobra.Command{
	Use:   "replace [FILE]",
	Short: "Replaces the whole variable set with a dotenv file",
	Long: `Replaces the whole variable set with the contents of a dotenv file.
Reads FILE, or stdin when FILE is omitted or "-".

Dotenv parsing: blank lines and # comments are skipped, each remaining
line splits on the first "=". Variables missing from the file are
removed. The previous set stays reachable through 'tawa history'.

Examples:
  tawa -n payments -e staging replace .env
  tawa -n payments -e staging export | tawa -n payments -e dev replace`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting replace command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		content, source, err := readReplaceContent(args)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read replacement content: %v", err)
		}
		Logger.Debugf("Read %d bytes from %s", len(content), source)

		spinner, cleanup := startSpinner("Replacing variables...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.BulkReplace(context.Background(), store.BulkReplaceOptions{
			Scope:         scope,
			DotenvContent: content,
			Actor:         resolveActor(),
			Description:   replaceDescription,
		})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to replace variables: %v", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Replaced %s with %d variables from %s\n",
			scopeLabel(scope), result.Count, ui.Path.Sprint(source)) +
			ui.Info.Sprint("→") + " Recorded as version " + ui.Highlight.Sprintf("%d", result.SequenceID) + "\n" +
			renderDiff(result.Diff)
		return nil
	},
}

// readReplaceContent loads the dotenv payload from the file argument, or
// stdin when the argument is missing or "-".
func readReplaceContent(args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := utils.ReadStdin()
		return data, "stdin", err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return data, args[0], nil
}
