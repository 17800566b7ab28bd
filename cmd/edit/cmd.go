// Package edit implements `pkger edit {recipe NAME|image NAME|config}`:
// spawn $EDITOR against the named recipe, image directory, or the
// configuration file.
package edit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
)

// Command is the `edit` command declaration.
var Command = &cobra.Command{
	Use:   "edit {recipe NAME|image NAME|config}",
	Short: "Launch $EDITOR against a recipe, an image, or the configuration file",
	Args:  cobra.RangeArgs(1, 2),
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

func run(_ *cobra.Command, args []string) error {
	logger := logConfig.NewLogger("pkger-edit")

	editor := os.Getenv("EDITOR")
	if editor == "" {
		err := fmt.Errorf("EDITOR is not set")
		logger.Error("cannot launch editor", "reason", err)
		return err
	}

	cfg, err := configFlags.LoadConfig()
	if err != nil {
		logger.Error("failed loading configuration", "reason", err)
		return err
	}

	var target string
	switch args[0] {
	case "config":
		target = configFlags.ConfigPath
	case "recipe":
		if len(args) != 2 {
			return fmt.Errorf("edit recipe requires a recipe name")
		}
		target = filepath.Join(cfg.RecipesDir, args[1], "recipe.yml")
	case "image":
		if len(args) != 2 {
			return fmt.Errorf("edit image requires an image name")
		}
		target = filepath.Join(cfg.ImagesDir, args[1], "Dockerfile")
	default:
		return fmt.Errorf("unknown edit subject %q, expected recipe, image, or config", args[0])
	}

	editCmd := exec.Command(editor, target)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	if err := editCmd.Run(); err != nil {
		logger.Error("editor exited with an error", "target", target, "reason", err)
		return err
	}
	return nil
}
