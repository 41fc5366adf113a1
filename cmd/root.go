package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	logger "github.com/tawa-dev/tawa/internal/logging"
)

var (
	verbose     bool
	debug       bool
	namespace   string
	environment string
	actorFlag   string
	Logger      logger.Logger

	RootCmd = &cobra.Command{
		Use:   "tawa",
		Short: "Tawa - an encrypted, versioned store for environment variables",
		Long: `Tawa stores environment variables in encrypted sets addressed by
namespace and environment. Every change is versioned in a per-set history
log and recorded in a global audit trail.

Variable sets live under your data directory, encrypted with a key that
never sits next to the data. Use 'tawa init' to set up the store, then
address a set with --namespace and --environment on every command.

Examples:
  tawa init
  tawa -n payments -e staging set DATABASE_URL postgres://localhost/pay
  tawa -n payments -e staging list
  tawa -n payments -e staging history
  tawa -n payments -e staging rollback 3

Run 'tawa help <command>' for more details on a specific command.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing tawa command with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	// Execute's caller prints returned errors once; cobra should not
	// print them again or dump usage on a domain error.
	RootCmd.SilenceErrors = true
	RootCmd.SilenceUsage = true

	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	RootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "namespace of the variable set")
	RootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "", "environment of the variable set")
	RootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "name recorded in history and audit entries (default $TAWA_ACTOR, then the OS user)")
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	namespace = ""
	environment = ""
	actorFlag = ""
	resetSetCommandState()
	resetListCommandState()
	resetReplaceCommandState()
	resetHistoryCommandState()
	resetDiffCommandState()
	resetRollbackCommandState()
	resetApplyCommandState()
	resetExportCommandState()
	resetAuditCommandState()
	resetBackupCommandState()
	resetCobraFlagState(RootCmd)
}

// resetCobraFlagState clears cobra's per-flag Changed markers on a command
// and everything below it to prevent test pollution.
func resetCobraFlagState(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
	})
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetCobraFlagState(sub)
	}
}
