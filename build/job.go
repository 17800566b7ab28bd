package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/build/patch"
	"github.com/pkger-build/pkger/build/pkgassemble"
	"github.com/pkger-build/pkger/build/script"
	"github.com/pkger-build/pkger/build/source"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
)

// State names every stop along a BuildJob's lifecycle.
type State int

const (
	Created State = iota
	ImageReady
	OutDirReady
	ContainerUp
	DepCacheBuilt
	DirsCreated
	SourceFetched
	Patched
	ScriptsRun
	Excluded
	Packaged
	Downloaded
	Done
	Failed
	Cancelled
)

// String renders the state the way it appears in job logs.
func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case ImageReady:
		return "ImageReady"
	case OutDirReady:
		return "OutDirReady"
	case ContainerUp:
		return "ContainerUp"
	case DepCacheBuilt:
		return "DepCacheBuilt"
	case DirsCreated:
		return "DirsCreated"
	case SourceFetched:
		return "SourceFetched"
	case Patched:
		return "Patched"
	case ScriptsRun:
		return "ScriptsRun"
	case Excluded:
		return "Excluded"
	case Packaged:
		return "Packaged"
	case Downloaded:
		return "Downloaded"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Job drives a single recipe/image/target build through every
// component from ImageBuilder to PackageAssembler. One Job owns exactly
// one Context and, once spawned, exactly one container.
type Job struct {
	ctx *Context

	imageBuilder *image.Builder
	fetcher      *source.Fetcher
	patcher      *patch.Applier
	scripts      *script.Runner
	assembler    *pkgassemble.Assembler

	logger hclog.Logger
	tracer opentracing.Tracer

	state State
}

// NewJob wires a Job around the given Context and component instances.
func NewJob(buildCtx *Context, imageBuilder *image.Builder, fetcher *source.Fetcher, patcher *patch.Applier,
	scripts *script.Runner, assembler *pkgassemble.Assembler, logger hclog.Logger, tracer opentracing.Tracer) *Job {
	return &Job{
		ctx:          buildCtx,
		imageBuilder: imageBuilder,
		fetcher:      fetcher,
		patcher:      patcher,
		scripts:      scripts,
		assembler:    assembler,
		logger:       logger.With("job-id", buildCtx.ID),
		tracer:       tracer,
		state:        Created,
	}
}

// JobResult is what Run returns: the final state, the artifact path
// when successful, and the failure reason otherwise.
type JobResult struct {
	Target       string
	State        State
	ArtifactPath string
	Err          error
}

// State returns the job's current lifecycle state.
func (j *Job) State() State { return j.state }

// Run drives the job to completion, honoring the state machine's
// invariant that any transition out of ContainerUp or later removes
// the spawned container.
func (j *Job) Run(ctx context.Context, parent opentracing.SpanContext) JobResult {
	span := j.tracer.StartSpan("build-job", opentracing.ChildOf(parent))
	defer span.Finish()
	span.SetTag("job-id", j.ctx.ID)
	span.SetTag("target", j.ctx.Target.String())

	target := j.ctx.Target.String()

	deps := j.ctx.Recipe.ResolvedDepends(j.ctx.Target.Image.Image)
	imageState, err := j.imageBuilder.EnsureImage(ctx, span.Context(), j.ctx.ImageSource, j.ctx.Target, deps, j.ctx.States, j.ctx.Simple, j.ctx.Quiet)
	if err != nil {
		return j.fail(target, err)
	}
	j.state = ImageReady

	outDir := filepath.Join(j.ctx.HostOutputDir, j.ctx.Target.Image.Image)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return j.fail(target, err)
	}
	j.state = OutDirReady

	h, err := container.Spawn(ctx, j.ctx.Engine, j.logger, j.tracer, span.Context(), imageState.FullTag(), map[string]string{SessionLabelKey: j.ctx.SessionID})
	if err != nil {
		return j.fail(target, err)
	}
	defer func() { h.Remove(ctx) }()
	j.state = ContainerUp

	if imageState.Tag == image.TagLatest || !imageState.DepsEqual(deps) {
		cached, err := j.imageBuilder.BuildDepCache(ctx, span.Context(), imageState, deps, j.ctx.Target, j.ctx.States, j.ctx.Quiet)
		if err != nil {
			return j.fail(target, err)
		}
		h.Remove(ctx)
		h, err = container.Spawn(ctx, j.ctx.Engine, j.logger, j.tracer, span.Context(), cached.FullTag(), map[string]string{SessionLabelKey: j.ctx.SessionID})
		if err != nil {
			return j.fail(target, err)
		}
		imageState = cached
		j.state = DepCacheBuilt
	}

	mkdirs := fmt.Sprintf("mkdir -p %s %s %s", j.ctx.BldDir, j.ctx.OutDir, j.ctx.TmpDir)
	if _, err := h.CheckedExec(ctx, container.NewExecSpec(mkdirs)); err != nil {
		h.Remove(ctx)
		return j.fail(target, err)
	}
	j.state = DirsCreated

	fetchVars := source.Vars{
		Recipe: j.ctx.Recipe.Name,
		Image:  j.ctx.Target.Image.Image,
		Target: target,
		OutDir: j.ctx.OutDir,
	}
	if err := j.fetcher.Fetch(ctx, span.Context(), h, j.ctx.Recipe, j.ctx.Renderer, fetchVars, j.ctx.RecipeDir, j.ctx.BldDir, j.ctx.TmpDir, j.ctx.Quiet); err != nil {
		h.Remove(ctx)
		return j.fail(target, &buildErrors.SourceFetchFailed{Source: j.ctx.Recipe.Source, Reason: err})
	}
	j.state = SourceFetched

	if err := j.patcher.Apply(ctx, span.Context(), h, j.ctx.Recipe.Patches, j.ctx.Target.Image.Image, j.ctx.RecipeDir, j.ctx.BldDir, j.ctx.TmpDir); err != nil {
		h.Remove(ctx)
		return j.fail(target, err)
	}
	j.state = Patched

	blocks := script.DefaultBlocks(j.ctx.Recipe)
	if err := j.scripts.Run(ctx, span.Context(), h, blocks, j.ctx.Target.Image.Image, j.ctx.BldDir); err != nil {
		h.Remove(ctx)
		return j.fail(target, err)
	}
	j.state = ScriptsRun

	if err := j.scripts.EnforceExcludes(ctx, h, j.ctx.Recipe.Exclude, j.ctx.OutDir); err != nil {
		h.Remove(ctx)
		return j.fail(target, err)
	}
	j.state = Excluded

	artifactPath, err := j.assembler.Assemble(ctx, span.Context(), h, pkgassemble.Params{
		Recipe:          j.ctx.Recipe,
		Target:          j.ctx.Target.Image.Target,
		ImageState:      imageState,
		ContainerOutDir: j.ctx.OutDir,
		TmpDir:          j.ctx.TmpDir,
		OutputDir:       outDir,
		GPGKeyName:      j.ctx.GPGKeyName,
	})
	if err != nil {
		h.Remove(ctx)
		return j.fail(target, err)
	}
	j.state = Packaged
	j.state = Downloaded

	h.Remove(ctx)
	j.state = Done

	return JobResult{Target: target, State: Done, ArtifactPath: artifactPath}
}

func (j *Job) fail(target string, err error) JobResult {
	j.state = Failed
	j.logger.Error("job failed", "reason", err)
	return JobResult{Target: target, State: Failed, Err: err}
}
