// Package initcmd implements `pkger init`: first-run bootstrap of the
// recipes/images/output directory layout and a default configuration
// file.
package initcmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
)

// Command is the `init` command declaration.
var Command = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the recipes/images/output directory layout and a default configuration file",
	RunE:  run,
}

var (
	configFlags = cmd.NewConfigFlags()
	logConfig   = configs.NewLoggingConfig()
)

func init() {
	Command.Flags().AddFlagSet(configFlags.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
}

func run(_ *cobra.Command, _ []string) error {
	logger := logConfig.NewLogger("pkger-init")

	if _, err := os.Stat(configFlags.ConfigPath); err == nil {
		logger.Warn("configuration file already exists, leaving it in place", "path", configFlags.ConfigPath)
	} else {
		cfg := configs.Default()
		if err := configs.Save(configFlags.ConfigPath, cfg); err != nil {
			logger.Error("failed writing default configuration", "reason", err)
			return err
		}
		logger.Info("wrote default configuration", "path", configFlags.ConfigPath)

		for _, dir := range []string{cfg.RecipesDir, cfg.ImagesDir, cfg.OutputDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Error("failed creating directory", "dir", dir, "reason", err)
				return err
			}
		}
		logger.Info("bootstrapped directory layout", "recipes", cfg.RecipesDir, "images", cfg.ImagesDir, "output", cfg.OutputDir)
	}

	return nil
}
