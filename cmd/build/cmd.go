// Package build implements the `pkger build` command: expands a
// BuildOpts against the configured recipes/images and runs the
// resulting tasks through the scheduler, same Command/run-function
// shape as the teacher's cmd/build package.
package build

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/uuid"
	"github.com/spf13/cobra"

	"github.com/pkger-build/pkger/build"
	"github.com/pkger-build/pkger/cmd"
	"github.com/pkger-build/pkger/configs"
	"github.com/pkger-build/pkger/pkg/tracing"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/schedule"
)

// Command is the `build` command declaration.
var Command = &cobra.Command{
	Use:   "build",
	Short: "Build packages from recipes against configured images",
	RunE:  run,
	Long:  ``,
}

var (
	configFlags   = cmd.NewConfigFlags()
	logConfig     = configs.NewLoggingConfig()
	tracingConfig = configs.NewTracingConfig("pkger-build")

	flagAll     bool
	flagRecipes []string
	flagImages  []string
	flagSimple  []string
	flagNoSign  bool
)

func initFlags() {
	Command.Flags().AddFlagSet(configFlags.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
	Command.Flags().AddFlagSet(tracingConfig.FlagSet())

	Command.Flags().BoolVar(&flagAll, "all", false, "Build every configured recipe against every image it targets")
	Command.Flags().StringArrayVar(&flagRecipes, "recipes", nil, "Restrict the build to these recipe names")
	Command.Flags().StringArrayVar(&flagImages, "images", nil, "Restrict the build to these configured image names")
	Command.Flags().StringArrayVar(&flagSimple, "simple", nil, "Build recipes against auto-provisioned simple images for these targets (deb, rpm, pkg, gzip)")
	Command.Flags().BoolVar(&flagNoSign, "no-sign", false, "Disable GPG signing of deb/rpm artifacts even if a key is configured")
}

func init() {
	initFlags()
}

func run(cobraCommand *cobra.Command, _ []string) error {
	logger := logConfig.NewLogger("pkger-build")

	cfg, err := configFlags.LoadConfig()
	if err != nil {
		logger.Error("failed loading configuration", "reason", err)
		return err
	}

	tracer, tracerCleanup, err := tracing.GetTracer(logger.Named("tracer"), tracingConfig)
	if err != nil {
		logger.Error("failed constructing tracer", "reason", err)
		return err
	}
	defer tracerCleanup()

	resources, err := cmd.NewResources(cfg, logger)
	if err != nil {
		logger.Error("failed wiring build resources", "reason", err)
		return err
	}

	opts := schedule.BuildOpts{
		All:     flagAll,
		Recipes: flagRecipes,
		Images:  flagImages,
	}
	for _, name := range flagSimple {
		target, err := recipe.ParseBuildTarget(name)
		if err != nil {
			logger.Error("invalid --simple target", "value", name, "reason", err)
			return err
		}
		opts.Simple = append(opts.Simple, target)
	}

	tasks, err := schedule.Expand(opts, cfg.RecipesDir, resources.Loader, cfg.Images, logger)
	if err != nil {
		logger.Error("failed expanding build tasks", "reason", err)
		return err
	}
	if len(tasks) == 0 {
		logger.Warn("no build tasks to run")
		return nil
	}

	sessionID := uuid.Must(uuid.NewV4()).String()
	scheduler := schedule.NewScheduler(resources.Engine, resources.Renderer, resources.Keys, resources.Store, logger, tracer, sessionID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			logger.Warn("received interrupt, cancelling outstanding jobs")
			scheduler.Stop()
		}
	}()
	defer signal.Stop(sigCh)

	gpgKeyName := cfg.GPGKeyName
	if flagNoSign {
		gpgKeyName = ""
	}

	summary, runErr := scheduler.RunTasks(context.Background(), nil, tasks, schedule.RunParams{
		RecipesDir:    cfg.RecipesDir,
		ImagesDir:     cfg.ImagesDir,
		HostOutputDir: cfg.OutputDir,
		GPGKeyName:    gpgKeyName,
		SSHConfig:     cfg.SSH,
		Quiet:         logConfig.Quiet,
	})
	if runErr != nil {
		logger.Error("one or more jobs failed", "reason", runErr)
	}

	for _, result := range summary.Results {
		if result.State == build.Done {
			logger.Info("artifact built", "target", result.Target, "path", result.ArtifactPath)
		} else {
			logger.Error("build target failed", "target", result.Target, "state", result.State.String(), "reason", result.Err)
		}
	}

	logger.Info("build session complete", "session-id", sessionID, "reclaimed-bytes", summary.ReclaimedBytes, "failed", summary.Failed)

	if summary.Failed {
		os.Exit(1)
	}
	return nil
}
