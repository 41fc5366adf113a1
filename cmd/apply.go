package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

var (
	applyTemplatesFile string
	applyDescription   string
)

func init() {
	RootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&applyTemplatesFile, "templates-file", "", "templates file to read (default from config)")
	applyCmd.Flags().StringVar(&applyDescription, "description", "", "note recorded alongside the change")
}

// resetApplyCommandState resets the apply command's global state for testing.
func resetApplyCommandState() {
	applyTemplatesFile = ""
	applyDescription = ""
}

var applyCmd = &cobra.Command{
	Use:   "apply TEMPLATE",
	Short: "Renders a named template into the set",
	Long: `Renders a named template from the templates file into the selected
set. Literal values are written as-is; variables whose value is
__GENERATE__ receive a fresh random secret on every render. Existing
variables the template does not mention are left alone.

Example:
  tawa -n payments -e staging apply web-service`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting apply command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		spinner, cleanup := startSpinner("Applying template...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.ApplyTemplate(context.Background(), store.ApplyTemplateOptions{
			Scope:         scope,
			Template:      args[0],
			TemplatesFile: applyTemplatesFile,
			Actor:         resolveActor(),
			Description:   applyDescription,
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " " + err.Error() + "\n" +
					ui.Info.Sprint("→") + " Check the template name against your templates file"
				return nil
			}
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to apply template: %v", err)
		}

		msg := ui.Success.Sprint("✓") + " Applied template " + ui.Highlight.Sprint(result.Template) +
			" to " + scopeLabel(scope) +
			ui.Muted.Sprintf(" (%d variables)", result.Count) + "\n"
		if len(result.GeneratedKeys) > 0 {
			msg += ui.Info.Sprint("→") + " Generated fresh values for " +
				ui.Highlight.Sprint(strings.Join(result.GeneratedKeys, ", ")) + "\n"
		}
		msg += ui.Info.Sprint("→") + " Recorded as version " + ui.Highlight.Sprintf("%d", result.SequenceID) + "\n" +
			renderDiff(result.Diff)
		spinner.FinalMSG = msg
		return nil
	},
}
