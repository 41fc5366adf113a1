package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/audit"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
	"github.com/tawa-dev/tawa/internal/vault"
)

var (
	auditOperation  string
	auditBy         string
	auditOutcome    string
	auditSince      string
	auditUntil      string
	auditLimit      int
	auditOffset     int
	auditJSON       bool
	auditOutputPath string
)

func init() {
	auditCmd.PersistentFlags().StringVar(&auditOperation, "operation", "", "filter by action (comma-separated, e.g. delete,rollback)")
	auditCmd.PersistentFlags().StringVar(&auditBy, "by", "", "only entries recorded by this actor")
	auditCmd.PersistentFlags().StringVar(&auditOutcome, "outcome", "", "filter by outcome: success or failure")
	auditCmd.PersistentFlags().StringVar(&auditSince, "since", "", "entries on or after this date (YYYY-MM-DD)")
	auditCmd.PersistentFlags().StringVar(&auditUntil, "until", "", "entries up to and including this date (YYYY-MM-DD)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "limit number of entries shown")
	auditCmd.Flags().IntVar(&auditOffset, "offset", 0, "skip this many entries before showing any")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "output as JSON array")
	auditExportCmd.Flags().StringVarP(&auditOutputPath, "output", "o", "", "write to a file instead of stdout")

	auditCmd.AddCommand(auditExportCmd)
	RootCmd.AddCommand(auditCmd)
}

// resetAuditCommandState resets the audit command's global state for testing.
func resetAuditCommandState() {
	auditOperation = ""
	auditBy = ""
	auditOutcome = ""
	auditSince = ""
	auditUntil = ""
	auditLimit = 0
	auditOffset = 0
	auditJSON = false
	auditOutputPath = ""
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Queries the audit trail",
	Long: `Queries the global audit trail, most recent entries first. Every
operation against the store is recorded here, reads and failures
included. Entries carry value hashes, never values.

The --namespace and --environment flags narrow the query when given.

Examples:
  tawa audit                                # Recent activity, all sets
  tawa -n payments audit                    # One namespace only
  tawa audit --operation delete,rollback    # Destructive changes
  tawa audit --by alice --since 2026-08-01  # One actor, bounded
  tawa audit --outcome failure              # What went wrong
  tawa audit --json                         # JSON output`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting audit command")

		filter, err := buildAuditFilter()
		if err != nil {
			return err
		}
		filter.Limit = auditLimit
		filter.Offset = auditOffset

		spinner, cleanup := startSpinner("Querying audit trail...", verbose)
		defer cleanup()

		st, _, err := openStore()
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return err
		}

		entries, err := st.AuditQuery(context.Background(), store.AuditQueryOptions{Filter: filter})
		if err != nil {
			if msg := formatStoreError(err); msg != "" {
				spinner.FinalMSG = msg
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to query audit trail: %v", err)
		}

		spinner.FinalMSG = ""
		cleanup()

		if len(entries) == 0 {
			if hasAuditFilters() {
				fmt.Println("No audit entries found matching the filters.")
			} else {
				fmt.Println("No audit entries found.")
			}
			return nil
		}

		if auditJSON {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal entries to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for _, e := range entries {
			fmt.Println(formatAuditLine(e))
		}
		return nil
	},
}

// auditExportCmd streams to stdout by default so it composes in scripts:
//
//	tawa audit export --since 2026-08-01 | gzip > audit.jsonl.gz
var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports the audit trail as JSON Lines",
	Long: `Writes matching audit entries to stdout (or --output) as JSON Lines
in chronological order. The parent command's filter flags apply; limit
and offset do not. The export itself is recorded in the trail.

Examples:
  tawa audit export > audit.jsonl
  tawa audit export --since 2026-01-01 -o january.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting audit export command")

		filter, err := buildAuditFilter()
		if err != nil {
			return err
		}

		st, _, err := openStore()
		if err != nil {
			return err
		}

		opts := store.AuditExportOptions{Filter: filter, Actor: resolveActor()}

		if auditOutputPath == "" {
			_, err := st.AuditExport(context.Background(), os.Stdout, opts)
			return err
		}

		f, err := os.OpenFile(auditOutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", auditOutputPath, err)
		}
		result, err := st.AuditExport(context.Background(), f, opts)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}

		fmt.Println(ui.Success.Sprint("✓") + " Exported " +
			ui.Highlight.Sprintf("%d", result.Count) + " audit entries to " +
			ui.Code.Sprint(auditOutputPath))
		return nil
	},
}

// buildAuditFilter assembles the shared filter flags into an audit filter.
func buildAuditFilter() (audit.Filter, error) {
	filter := audit.Filter{
		Actor:       auditBy,
		Namespace:   namespace,
		Environment: environment,
	}

	if auditOperation != "" {
		for _, op := range strings.Split(auditOperation, ",") {
			op = strings.TrimSpace(op)
			if !vault.KnownAction(op) {
				return audit.Filter{}, fmt.Errorf("%w: unknown action %q in --operation", kerrors.ErrValidation, op)
			}
			filter.Actions = append(filter.Actions, vault.Action(op))
		}
	}

	switch auditOutcome {
	case "", audit.OutcomeSuccess, audit.OutcomeFailure:
		filter.Outcome = auditOutcome
	default:
		return audit.Filter{}, fmt.Errorf("%w: --outcome must be success or failure, got %q", kerrors.ErrValidation, auditOutcome)
	}

	if auditSince != "" {
		since, err := time.Parse("2006-01-02", auditSince)
		if err != nil {
			return audit.Filter{}, fmt.Errorf("%w: --since date format invalid, use YYYY-MM-DD", kerrors.ErrValidation)
		}
		filter.Since = since
	}
	if auditUntil != "" {
		until, err := time.Parse("2006-01-02", auditUntil)
		if err != nil {
			return audit.Filter{}, fmt.Errorf("%w: --until date format invalid, use YYYY-MM-DD", kerrors.ErrValidation)
		}
		// Include the entire named day. Filter.Until is an exclusive bound.
		filter.Until = until.Add(24 * time.Hour)
	}

	return filter, nil
}

func hasAuditFilters() bool {
	return auditOperation != "" || auditBy != "" || auditOutcome != "" ||
		auditSince != "" || auditUntil != "" || namespace != "" || environment != ""
}

// formatAuditLine renders one audit entry as a fixed-width line.
func formatAuditLine(e audit.Entry) string {
	when := e.Timestamp
	if t, err := e.Time(); err == nil {
		when = t.Local().Format("2006-01-02 15:04:05")
	}

	scope := "-"
	if e.Namespace != "" {
		scope = e.Namespace + "/" + e.Environment
	}
	resource := e.Resource
	if resource == "" {
		resource = "-"
	}

	line := fmt.Sprintf("%-19s  %-12s  %-15s  %-7s  %-20s  %s",
		when, e.Actor, e.Action, e.Outcome, scope, resource)
	if e.Outcome == audit.OutcomeFailure && e.Error != "" {
		line += "  " + ui.Muted.Sprint(e.Error)
	}
	return line
}
