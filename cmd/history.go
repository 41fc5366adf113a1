package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
)

var (
	historyLimit  int
	historyOffset int
	historyKeep   int
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum entries to list (default from config)")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "entries to skip from the most recent end")
	historyCompactCmd.Flags().IntVar(&historyKeep, "keep", 0, "number of newest versions to keep")
	_ = historyCompactCmd.MarkFlagRequired("keep")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCompactCmd)
	RootCmd.AddCommand(historyCmd)
}

// resetHistoryCommandState resets the history command's global state for testing.
func resetHistoryCommandState() {
	historyLimit = 0
	historyOffset = 0
	historyKeep = 0
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the recorded versions of a set, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting history command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		spinner, cleanup := startSpinner("Reading history...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		entries, err := st.History(context.Background(), store.HistoryOptions{
			Scope:  scope,
			Limit:  historyLimit,
			Offset: historyOffset,
			Actor:  resolveActor(),
		})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to read history: %v", err)
		}

		if len(entries) == 0 {
			spinner.FinalMSG = ui.Muted.Sprint("No history for ") + scopeLabel(scope)
			return nil
		}

		var b strings.Builder
		b.WriteString("History of " + scopeLabel(scope) + " " + ui.Muted.Sprintf("%d entries", len(entries)) + "\n")
		for _, entry := range entries {
			b.WriteString(fmt.Sprintf("  %s  %s  %-10s  %-14s %s\n",
				ui.Highlight.Sprintf("%4d", entry.SequenceID),
				ui.Muted.Sprint(entry.Timestamp),
				entry.Actor,
				entry.Action,
				entry.Description))
		}
		b.WriteString(ui.Info.Sprint("→") + " See one version with " + ui.Code.Sprint("tawa history show <version>"))
		spinner.FinalMSG = b.String()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show VERSION",
	Short: "Shows one recorded version with its full snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting history show command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		seq, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: version must be a number, got %q", kerrors.ErrValidation, args[0])
		}

		spinner, cleanup := startSpinner("Reading version...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		entry, err := st.HistoryEntry(context.Background(), store.HistoryEntryOptions{
			Scope:      scope,
			SequenceID: seq,
			Actor:      resolveActor(),
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " No version " + ui.Highlight.Sprintf("%d", seq) + " recorded for " + scopeLabel(scope) + "\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("tawa history") + " to list versions"
				return nil
			}
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to read version: %v", err)
		}

		keys := make([]string, 0, len(entry.Snapshot))
		for key := range entry.Snapshot {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("Version " + ui.Highlight.Sprintf("%d", entry.SequenceID) + " of " + scopeLabel(scope) + "\n")
		b.WriteString("  " + ui.Muted.Sprint(entry.Timestamp) + "  " + entry.Actor + "  " + string(entry.Action) + "  " + entry.Description + "\n")
		b.WriteString("Snapshot " + ui.Muted.Sprintf("%d variables", len(entry.Snapshot)) + "\n")
		for _, key := range keys {
			b.WriteString("  " + ui.Key.Sprint(key) + "=" + entry.Snapshot[key] + "\n")
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}

var historyCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drops all but the newest versions from the history log",
	Long: `Drops all but the newest versions from the history log. Version
numbers are preserved; only older entries disappear. Rollback and diff
can no longer reach dropped versions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting history compact command")
		scope, err := requireScope()
		if err != nil {
			return err
		}

		spinner, cleanup := startSpinner("Compacting history...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		result, err := st.CompactHistory(context.Background(), store.CompactHistoryOptions{
			Scope:    scope,
			KeepLast: historyKeep,
			Actor:    resolveActor(),
		})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to compact history: %v", err)
		}

		if result.Removed == 0 {
			spinner.FinalMSG = ui.Success.Sprint("✓") + " Nothing to compact: " + scopeLabel(scope) +
				ui.Muted.Sprintf(" already has at most %d versions", result.KeepLast)
			return nil
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Dropped %d old versions from %s, kept the newest %d",
			result.Removed, scopeLabel(scope), result.KeepLast)
		return nil
	},
}
