// Package newcmd implements `pkger new {image NAME|recipe NAME}`:
// scaffold a minimal image or recipe directory ready for editing.
package newcmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
)

// Command is the `new` command declaration.
var Command = &cobra.Command{
	Use:   "new {image NAME|recipe NAME}",
	Short: "Scaffold a new image or recipe directory",
	Args:  cobra.ExactArgs(2),
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

const recipeSkeleton = `name: %s
version: 0.1.0
release: "1"
arch: amd64
images:
  - debian-bullseye
build_depends:
  "": []
source: ""
configure_script: []
build_script: []
install_script: []
`

const imageSkeleton = `FROM debian:bullseye
`

func run(_ *cobra.Command, args []string) error {
	logger := logConfig.NewLogger("pkger-new")

	cfg, err := configFlags.LoadConfig()
	if err != nil {
		logger.Error("failed loading configuration", "reason", err)
		return err
	}

	name := args[1]

	switch args[0] {
	case "recipe":
		dir := filepath.Join(cfg.RecipesDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed creating recipe directory", "reason", err)
			return err
		}
		path := filepath.Join(dir, "recipe.yml")
		if err := ioutil.WriteFile(path, []byte(fmt.Sprintf(recipeSkeleton, name)), 0o644); err != nil {
			logger.Error("failed writing recipe skeleton", "reason", err)
			return err
		}
		logger.Info("recipe scaffolded", "path", path)
	case "image":
		dir := filepath.Join(cfg.ImagesDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed creating image directory", "reason", err)
			return err
		}
		path := filepath.Join(dir, "Dockerfile")
		if err := ioutil.WriteFile(path, []byte(imageSkeleton), 0o644); err != nil {
			logger.Error("failed writing image skeleton", "reason", err)
			return err
		}
		logger.Info("image scaffolded", "path", path)
	default:
		return fmt.Errorf("unknown new subject %q, expected image or recipe", args[0])
	}
	return nil
}
