package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

var (
	exportFormat     string
	exportOutputPath string
)

func init() {
	RootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", store.FormatEnv, "output format: env, json, or yaml")
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "write to a file instead of stdout")
}

// resetExportCommandState resets the export command's global state for testing.
func resetExportCommandState() {
	exportFormat = store.FormatEnv
	exportOutputPath = ""
}

// exportCmd writes to stdout by default so it composes in scripts:
//
//	tawa -n payments -e production export > .env
//
// Errors go to the exit code rather than a styled message.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Renders the set as dotenv, JSON, or YAML",
	Long: `Renders the selected variable set in the requested format. Output
goes to stdout unless --output names a file. Keys are sorted, so
exporting the same set twice produces identical bytes.

Examples:
  tawa -n payments -e production export > .env
  tawa -n payments -e production export --format json
  tawa -n payments -e production export --format yaml -o vars.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting export command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		st, _, err := openStore()
		if err != nil {
			return err
		}

		result, err := st.Export(context.Background(), store.ExportOptions{
			Scope:  scope,
			Format: exportFormat,
			Actor:  resolveActor(),
		})
		if err != nil {
			return err
		}

		if exportOutputPath == "" {
			fmt.Print(string(result.Content))
			return nil
		}

		if err := os.WriteFile(exportOutputPath, result.Content, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutputPath, err)
		}
		fmt.Println(ui.Success.Sprint("✓") + " Exported " +
			ui.Highlight.Sprintf("%d", result.Count) + " variables from " + scopeLabel(scope) +
			" to " + ui.Code.Sprint(exportOutputPath))
		return nil
	},
}
