// Package list implements the `pkger list {images|recipes|packages}`
// command tree: read-only tabular views over the configuration, the
// recipe directory, and the image-state cache.
package list

import (
	"fmt"
	"io/ioutil"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
)

// Command is the `list` parent command; its actual work lives in the
// three subcommands below.
var Command = &cobra.Command{
	Use:   "list",
	Short: "List images, recipes, or built packages",
	Long:  ``,
}

var (
	configFlags = cmd.NewConfigFlags()
	logConfig   = configs.NewLoggingConfig()

	flagVerbose bool
	flagRaw     bool
	flagImages  []string
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List configured images and their cache state",
	RunE:  runImages,
}

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List recipes found in the recipes directory",
	RunE:  runRecipes,
}

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List built packages in the output directory",
	RunE:  runPackages,
}

func init() {
	Command.PersistentFlags().AddFlagSet(configFlags.FlagSet())
	Command.PersistentFlags().AddFlagSet(logConfig.FlagSet())
	Command.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Show extra columns")
	Command.PersistentFlags().BoolVar(&flagRaw, "raw", false, "Print one unpadded line per entry instead of an aligned table")

	packagesCmd.Flags().StringArrayVar(&flagImages, "images", nil, "Restrict the listing to these image names")

	Command.AddCommand(imagesCmd, recipesCmd, packagesCmd)
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func runImages(_ *cobra.Command, _ []string) error {
	logger := logConfig.NewLogger("pkger-list")

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

	cached := map[string]string{}
	for _, entry := range resources.Store.All() {
		cached[entry.Target.Image.Image] = entry.State.Tag
	}

	if flagRaw {
		for _, img := range cfg.Images {
			fmt.Println(img.Image, img.Target, cached[img.Image])
		}
		return nil
	}

	w := newTabWriter()
	if flagVerbose {
		fmt.Fprintln(w, "IMAGE\tTARGET\tOS-OVERRIDE\tCACHED-TAG")
		for _, img := range cfg.Images {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.Image, img.Target, img.OSOverride, orDash(cached[img.Image]))
		}
	} else {
		fmt.Fprintln(w, "IMAGE\tTARGET\tCACHED-TAG")
		for _, img := range cfg.Images {
			fmt.Fprintf(w, "%s\t%s\t%s\n", img.Image, img.Target, orDash(cached[img.Image]))
		}
	}
	return w.Flush()
}

func runRecipes(_ *cobra.Command, _ []string) error {
	logger := logConfig.NewLogger("pkger-list")

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

	names, err := resources.Loader.List(cfg.RecipesDir)
	if err != nil {
		logger.Error("failed listing recipes", "reason", err)
		return err
	}

	if flagRaw || !flagVerbose {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	w := newTabWriter()
	fmt.Fprintln(w, "RECIPE\tVERSION\tRELEASE\tIMAGES")
	for _, name := range names {
		r, err := resources.Loader.Load(cfg.RecipesDir, name)
		if err != nil {
			logger.Warn("failed loading recipe, skipping", "recipe", name, "reason", err)
			continue
		}
		images := "all"
		if !r.AllImages {
			images = fmt.Sprintf("%v", r.Images)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Version, r.Release, images)
	}
	return w.Flush()
}

func runPackages(_ *cobra.Command, _ []string) error {
	logger := logConfig.NewLogger("pkger-list")

	cfg, err := configFlags.LoadConfig()
	if err != nil {
		logger.Error("failed loading configuration", "reason", err)
		return err
	}

	wanted := map[string]bool{}
	for _, name := range flagImages {
		wanted[name] = true
	}

	imageDirs, err := ioutil.ReadDir(cfg.OutputDir)
	if err != nil {
		logger.Error("failed reading output directory", "reason", err)
		return err
	}

	w := newTabWriter()
	if flagVerbose && !flagRaw {
		fmt.Fprintln(w, "IMAGE\tFILE\tSIZE")
	}
	for _, imgDir := range imageDirs {
		if !imgDir.IsDir() {
			continue
		}
		if len(wanted) > 0 && !wanted[imgDir.Name()] {
			continue
		}
		files, err := ioutil.ReadDir(cfg.OutputDir + "/" + imgDir.Name())
		if err != nil {
			logger.Warn("failed reading image output directory, skipping", "image", imgDir.Name(), "reason", err)
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if flagRaw {
				fmt.Println(imgDir.Name() + "/" + f.Name())
			} else if flagVerbose {
				fmt.Fprintf(w, "%s\t%s\t%d\n", imgDir.Name(), f.Name(), f.Size())
			} else {
				fmt.Fprintf(w, "%s\t%s\n", imgDir.Name(), f.Name())
			}
		}
	}
	if !flagRaw {
		return w.Flush()
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
