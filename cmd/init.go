package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"github.com/tawa-dev/tawa/internal/cipher"
	"github.com/tawa-dev/tawa/internal/configs"
	"github.com/tawa-dev/tawa/internal/ui"
	"github.com/tawa-dev/tawa/internal/utils"
)

func init() {
	RootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Sets up the store directory, encryption key, and config file",
	Long: `Sets up everything tawa needs: the store directory, a fresh random
encryption key (written with owner-only permissions, outside the store
directory), and a config file recording both locations.

Running init on an already initialized store changes nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting init command")
		spinner, cleanup := startSpinner("Initializing tawa...", verbose)
		defer cleanup()

		settings, err := configs.LoadSettings()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to load settings: %v", err)
		}
		Logger.Debugf("Store dir: %s, key file: %s", settings.StoreDir, settings.KeyFile)

		if _, err := os.Stat(settings.KeyFile); err == nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Tawa is already initialized\n" +
				ui.Info.Sprint("→") + " Key file exists at " + ui.Path.Sprint(settings.KeyFile)
			return nil
		}

		Logger.Debugf("Creating store directory")
		if err := os.MkdirAll(settings.StoreDir, 0700); err != nil {
			return Logger.ErrorfAndReturn("Failed to create store directory: %v", err)
		}

		Logger.Debugf("Generating encryption key")
		key, err := cipher.GenerateKey()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to generate encryption key: %v", err)
		}
		if err := os.MkdirAll(filepath.Dir(settings.KeyFile), 0700); err != nil {
			return Logger.ErrorfAndReturn("Failed to create key directory: %v", err)
		}
		if err := cipher.WriteKeyFile(settings.KeyFile, key); err != nil {
			return Logger.ErrorfAndReturn("Failed to write key file: %v", err)
		}
		Logger.Infof("Encryption key written to %s", settings.KeyFile)

		configPath, err := configs.ConfigPath()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to resolve config path: %v", err)
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			Logger.Debugf("Writing config file to %s", configPath)
			if err := settings.Save(); err != nil {
				return Logger.ErrorfAndReturn("Failed to write config file: %v", err)
			}
		}

		// Stop the spinner before printing the banner.
		spinner.FinalMSG = ""
		cleanup()

		fmt.Println()
		banner := figure.NewColorFigure("tawa", "alligator2", "green", true)
		banner.Print()
		fmt.Println()

		fmt.Println(ui.Success.Sprint("✓") + " Tawa initialized successfully!")
		fmt.Println("The following locations are in use:" + utils.FormatPaths([]string{
			configPath,
			settings.KeyFile,
			settings.StoreDir,
		}))
		fmt.Println(ui.Warning.Sprint("!") + " Back up the key file somewhere safe. Without it the store cannot be read.")
		fmt.Println(ui.Info.Sprint("→") + " Set your first variable with " + ui.Code.Sprint("tawa -n <namespace> -e <environment> set KEY"))
		return nil
	},
}
