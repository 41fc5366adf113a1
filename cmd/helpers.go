package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/tawa-dev/tawa/internal/configs"
	"github.com/tawa-dev/tawa/internal/diff"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/store"
	"github.com/tawa-dev/tawa/internal/ui"
	"github.com/tawa-dev/tawa/internal/utils"
	"github.com/tawa-dev/tawa/internal/vault"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
// This ensures consistent output formatting across all commands.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	err := s.Color("cyan")
	if err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		Logger.Debugf("Starting spinner in non-verbose mode")
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		// Restore log output first.
		if !verbose && !debug {
			Logger.Debugf("Restoring log output")
			log.SetOutput(os.Stdout)
		}

		// Ensure final message ends with a newline.
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		// Stop the spinner first to clear the spinner line.
		if !verbose && !debug {
			Logger.Debugf("Stopping spinner")
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// openStore loads the settings and wires up the file-backed store.
func openStore() (*store.Store, *configs.Settings, error) {
	Logger.Debugf("Loading settings")
	settings, err := configs.LoadSettings()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}
	Logger.Debugf("Store dir: %s, key file: %s", settings.StoreDir, settings.KeyFile)

	st, err := store.Open(settings, Logger)
	if err != nil {
		return nil, nil, err
	}
	return st, settings, nil
}

// requireScope builds the scope from the --namespace and --environment flags.
// Both are required for scoped commands.
func requireScope() (vault.Scope, error) {
	if namespace == "" || environment == "" {
		return vault.Scope{}, fmt.Errorf("%w: --namespace and --environment select the variable set (e.g. tawa -n payments -e staging list)", kerrors.ErrValidation)
	}
	return vault.Scope{Namespace: namespace, Environment: environment}, nil
}

// resolveActor picks the actor name recorded in history and audit entries:
// the --actor flag, then $TAWA_ACTOR, then the OS username.
func resolveActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	if env := os.Getenv("TAWA_ACTOR"); env != "" {
		return env
	}
	username, err := utils.GetUsername()
	if err != nil {
		Logger.Debugf("Failed to look up OS username: %v", err)
		return ""
	}
	return username
}

// scopeLabel renders a scope for messages, e.g. "payments/staging".
func scopeLabel(scope vault.Scope) string {
	return ui.Highlight.Sprint(scope.Namespace + "/" + scope.Environment)
}

// formatStoreError maps shared store errors to a final message. Returns the
// empty string for errors the calling command should format itself.
func formatStoreError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrKeyNotFound):
		return ui.Error.Sprint("✗") + " No encryption key found\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("tawa init") + " to set up the store"

	case errors.Is(err, kerrors.ErrInvalidKeyLength) || errors.Is(err, kerrors.ErrInvalidKeyEncoding):
		return ui.Error.Sprint("✗") + " The encryption key file is not usable: " + err.Error() + "\n" +
			ui.Info.Sprint("→") + " Restore the key file from wherever you keep its backup"

	case errors.Is(err, kerrors.ErrLockTimeout):
		return ui.Error.Sprint("✗") + " Another process is holding the lock\n" +
			ui.Info.Sprint("→") + " Try again, or raise " + ui.Code.Sprint("lock_timeout") + " in your config"

	case errors.Is(err, kerrors.ErrIntegrity):
		return ui.Error.Sprint("✗") + " Stored data failed its integrity check\n" +
			ui.Info.Sprint("→") + " The key may be wrong, or the store file was modified outside tawa"

	case errors.Is(err, kerrors.ErrCorruptStore):
		return ui.Error.Sprint("✗") + " A store file is corrupt: " + err.Error()

	case errors.Is(err, kerrors.ErrValidation):
		return ui.Error.Sprint("✗") + " " + err.Error()

	default:
		return ""
	}
}

// renderDiff renders a diff as indented added/removed/changed lines, values
// in clear text.
func renderDiff(d diff.Diff) string {
	if d.Empty() {
		return "    " + ui.Muted.Sprint("no differences") + "\n"
	}

	var b strings.Builder
	for _, key := range d.AddedKeys() {
		b.WriteString("    " + ui.Success.Sprint("+ ") + ui.Key.Sprint(key) + "=" + d.Added[key] + "\n")
	}
	for _, key := range d.RemovedKeys() {
		b.WriteString("    " + ui.Error.Sprint("- ") + ui.Key.Sprint(key) + "=" + d.Removed[key] + "\n")
	}
	for _, key := range d.ChangedKeys() {
		change := d.Changed[key]
		b.WriteString("    " + ui.Warning.Sprint("~ ") + ui.Key.Sprint(key) + "=" + change.Old + " " + ui.Info.Sprint("→") + " " + change.New + "\n")
	}
	return b.String()
}
