// Package copy implements `pkger copy {recipe|image} SRC DST`: a plain
// deep-copy of a recipe or image directory tree, used to start a new
// recipe/image from an existing one.
package copy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
)

// Command is the `copy` command declaration.
var Command = &cobra.Command{
	Use:   "copy {recipe|image} SRC DST",
	Short: "Deep-copy a recipe or image directory tree",
	Args:  cobra.ExactArgs(3),
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
	logger := logConfig.NewLogger("pkger-copy")

	cfg, err := configFlags.LoadConfig()
	if err != nil {
		logger.Error("failed loading configuration", "reason", err)
		return err
	}

	var base string
	switch args[0] {
	case "recipe":
		base = cfg.RecipesDir
	case "image":
		base = cfg.ImagesDir
	default:
		return fmt.Errorf("unknown copy subject %q, expected recipe or image", args[0])
	}

	src := filepath.Join(base, args[1])
	dst := filepath.Join(base, args[2])

	if err := copyTree(src, dst); err != nil {
		logger.Error("failed copying directory tree", "src", src, "dst", dst, "reason", err)
		return err
	}

	logger.Info("directory tree copied", "src", src, "dst", dst)
	return nil
}

// copyTree recursively copies src into dst, preserving file modes.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
