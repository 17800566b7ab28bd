// Package script implements component G (spec.md §4.G): running the
// configure/build/install script blocks and the post-script exclude-paths
// enforcement.
package script

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/recipe"
)

// Runner is component G.
type Runner struct {
	logger hclog.Logger
	tracer opentracing.Tracer
}

// NewRunner returns a Runner.
func NewRunner(logger hclog.Logger, tracer opentracing.Tracer) *Runner {
	return &Runner{logger: logger, tracer: tracer}
}

// Block names the configure/build/install script blocks, in the order
// spec.md §4.G requires them to run.
type Block struct {
	Name  string
	Steps []recipe.ScriptStep
}

// Run executes each present script block in order, for the current
// image, with cwd=bldDir. A step whose images filter excludes the
// current image is skipped. A non-zero exit aborts with ScriptFailed.
func (r *Runner) Run(ctx context.Context, parent opentracing.SpanContext, h *container.Handle,
	blocks []Block, image, bldDir string) error {

	span := r.tracer.StartSpan("script-run", opentracing.ChildOf(parent))
	defer span.Finish()

	for _, block := range blocks {
		for i, step := range block.Steps {
			if !step.AppliesToImage(image) {
				r.logger.Debug("skipping step, image filter excludes current image", "block", block.Name, "step", i)
				continue
			}
			r.logger.Info("running script step", "block", block.Name, "step", i, "cmd", step.Cmd)
			if _, err := h.CheckedExec(ctx, container.NewExecSpec(step.Cmd).WithWorkingDir(bldDir)); err != nil {
				return &buildErrors.ScriptFailed{Block: block.Name, StepIndex: i, Reason: err}
			}
		}
	}

	return nil
}

// EnforceExcludes removes every recipe.exclude entry from outDir. An
// absolute exclude path is rejected (warned and skipped) rather than
// failing the job, per spec.md §4.G.
func (r *Runner) EnforceExcludes(ctx context.Context, h *container.Handle, exclude []string, outDir string) error {
	if len(exclude) == 0 {
		return nil
	}

	var safe []string
	for _, p := range exclude {
		if filepath.IsAbs(p) {
			r.logger.Warn("invalid exclude path, absolute paths are not allowed, skipping", "path", p)
			continue
		}
		safe = append(safe, p)
	}
	if len(safe) == 0 {
		return nil
	}

	cmd := "rm -rvf"
	for _, p := range safe {
		cmd += " " + p
	}
	_, err := h.CheckedExec(ctx, container.NewExecSpec(cmd).WithWorkingDir(outDir))
	return err
}

// DefaultBlocks builds the ordered configure/build/install Block list
// from a recipe, skipping blocks with no steps.
func DefaultBlocks(r *recipe.Recipe) []Block {
	var blocks []Block
	if len(r.ConfigureScript) > 0 {
		blocks = append(blocks, Block{Name: "configure", Steps: r.ConfigureScript})
	}
	if len(r.BuildScript) > 0 {
		blocks = append(blocks, Block{Name: "build", Steps: r.BuildScript})
	}
	if len(r.InstallScript) > 0 {
		blocks = append(blocks, Block{Name: "install", Steps: r.InstallScript})
	}
	return blocks
}
