// Package cleancache implements `pkger clean-cache`: wipe the
// image-state store and persist the (now empty) result.
package cleancache

import (
	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
)

// Command is the `clean-cache` command declaration.
var Command = &cobra.Command{
	Use:   "clean-cache",
	Short: "Wipe the image-state cache",
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
	logger := logConfig.NewLogger("pkger-clean-cache")

	cfg, err := configFlags.LoadConfig()
	if err != nil {
		logger.Error("failed loading configuration", "reason", err)
		return err
	}

	resources, err := cmd.NewResources(cfg, logger)
	if err != nil {
		logger.Error("failed wiring resources", "reason", err)
		return err
	}

	resources.Store.Clear()
	if err := resources.Store.Save(); err != nil {
		logger.Error("failed persisting cleared image state", "reason", err)
		return err
	}

	logger.Info("image state cache cleared", "path", resources.Store.Path())
	return nil
}
