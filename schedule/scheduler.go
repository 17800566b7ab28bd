// Package schedule implements JobScheduler and SessionCleaner: the
// fan-out that turns a BuildOpts expansion into concurrently running
// Jobs, and the best-effort container sweep that follows them.
package schedule

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"

	"github.com/pkger-build/pkger/build"
	"github.com/pkger-build/pkger/build/patch"
	"github.com/pkger-build/pkger/build/pkgassemble"
	"github.com/pkger-build/pkger/build/script"
	"github.com/pkger-build/pkger/build/source"
	"github.com/pkger-build/pkger/configs"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/internal/randname"
	"github.com/pkger-build/pkger/keystore"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

// Scheduler is component J (JobScheduler): it turns expanded Tasks
// into running Jobs, one container apiece, and settles them into a
// Summary. Cancellation is cooperative — Stop cancels a context shared
// by every in-flight RunTasks call, the is_running watch spec.md §5
// describes. Each task's completion is raced against that
// cancellation (spec.md §4.J): the instant it fires, every
// not-yet-settled job's result is resolved as Cancelled, while the
// job itself keeps running in the background so its container is
// still unwound before RunTasks returns.
type Scheduler struct {
	engine   container.Engine
	renderer template.Renderer
	keys     keystore.KeyStore
	store    *image.Store
	logger   hclog.Logger
	tracer   opentracing.Tracer

	sessionID string

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewScheduler returns a Scheduler bound to one build session.
func NewScheduler(engine container.Engine, renderer template.Renderer, keys keystore.KeyStore, store *image.Store,
	logger hclog.Logger, tracer opentracing.Tracer, sessionID string) *Scheduler {
	return &Scheduler{
		engine:    engine,
		renderer:  renderer,
		keys:      keys,
		store:     store,
		logger:    logger.With("session-id", sessionID),
		tracer:    tracer,
		sessionID: sessionID,
	}
}

// Stop flips the scheduler's is_running watch to false, cancelling the
// context every outstanding job in the current RunTasks call is raced
// against. A Stop issued before RunTasks starts makes that call resolve
// every task as Cancelled. Safe to call from a signal handler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Summary is what RunTasks returns once every task has settled.
type Summary struct {
	Results []build.JobResult
	// Failed is true iff any result's State is build.Failed or
	// build.Cancelled.
	Failed bool
	// ReclaimedBytes is what SessionCleaner.Prune reported.
	ReclaimedBytes uint64
}

// RunParams carries the host paths and ambient config every Job in
// this run shares.
type RunParams struct {
	RecipesDir    string
	ImagesDir     string
	HostOutputDir string
	GPGKeyName    string
	SSHConfig     *configs.SSHConfig
	Quiet         bool
}

// RunTasks spawns one Job per task concurrently, waits for all of them
// to settle, then persists the image store if dirty and prunes the
// session's containers. It never returns an error itself for a single
// task — per-task failures live in Summary.Results; the returned error
// aggregates them for a single log line. tasks is the already-expanded
// list from Expand.
func (s *Scheduler) RunTasks(ctx context.Context, parent opentracing.SpanContext, tasks []Task, params RunParams) (Summary, error) {
	span := s.tracer.StartSpan("job-scheduler")
	if parent != nil {
		span = s.tracer.StartSpan("job-scheduler", opentracing.ChildOf(parent))
	}
	defer span.Finish()
	span.SetTag("task-count", len(tasks))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()

	results := make([]build.JobResult, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for i, task := range tasks {
		i, task := i, task
		target := recipe.NewRecipeTarget(task.Recipe.Name, task.Image)

		// jobDone carries runOne's result once the job itself settles.
		// It races against runCtx.Done() below: whichever happens first
		// decides results[i], but wg.Done only fires once jobDone has
		// actually delivered, so RunTasks still waits for the job's
		// container to unwind (spec.md §4.J, §5) even when it resolves
		// as Cancelled.
		jobDone := make(chan build.JobResult, 1)
		go func() {
			jobDone <- s.runOne(runCtx, span.Context(), task, params)
		}()

		go func() {
			defer wg.Done()
			select {
			case <-runCtx.Done():
				s.logger.Warn("job cancelled, waiting for container teardown", "target", target.String())
				results[i] = build.JobResult{
					Target: target.String(),
					State:  build.Cancelled,
					Err:    fmt.Errorf("job cancelled by ctrl-c signal"),
				}
				<-jobDone
			case r := <-jobDone:
				results[i] = r
			}
		}()
	}
	wg.Wait()

	summary := Summary{Results: results}
	var merr *multierror.Error
	for _, r := range results {
		if r.State == build.Failed || r.State == build.Cancelled {
			summary.Failed = true
			if r.Err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", r.Target, r.Err))
			}
		}
	}

	if s.store.HasChanged() {
		if err := s.store.Save(); err != nil {
			s.logger.Warn("failed saving image state", "reason", err)
		}
	}

	cleaner := NewCleaner(s.engine, s.logger)
	summary.ReclaimedBytes = cleaner.Prune(context.Background(), s.sessionID)

	return summary, merr.ErrorOrNil()
}

func (s *Scheduler) runOne(ctx context.Context, parent opentracing.SpanContext, task Task, params RunParams) build.JobResult {
	target := recipe.NewRecipeTarget(task.Recipe.Name, task.Image)

	if ctx.Err() != nil {
		s.logger.Warn("job cancelled before starting", "target", target.String())
		return build.JobResult{
			Target: target.String(),
			State:  build.Cancelled,
			Err:    fmt.Errorf("job cancelled by ctrl-c signal"),
		}
	}

	recipeDir := filepath.Join(params.RecipesDir, task.Recipe.Name)

	imageSource := filepath.Join(params.ImagesDir, task.Image.Image)
	if task.Simple {
		dir, err := provisionSimpleImageDir(task.Image.Target, task.BaseImage)
		if err != nil {
			return build.JobResult{Target: target.String(), State: build.Failed, Err: err}
		}
		defer os.RemoveAll(dir)
		imageSource = dir
	}

	buildCtx := build.NewContext(s.sessionID, task.Recipe, target, recipeDir, imageSource,
		s.engine, s.renderer, s.keys, s.store, params.HostOutputDir,
		task.Simple, params.Quiet, params.GPGKeyName, params.SSHConfig)

	imageBuilder := image.NewBuilder(s.engine, s.renderer, s.logger, s.tracer)
	fetcher := source.NewFetcher(s.logger, s.tracer)
	patcher := patch.NewApplier(s.logger, s.tracer)
	scripts := script.NewRunner(s.logger, s.tracer)
	assembler := pkgassemble.NewAssembler(s.renderer, s.keys, s.logger, s.tracer)

	job := build.NewJob(buildCtx, imageBuilder, fetcher, patcher, scripts, assembler, s.logger, s.tracer)
	return job.Run(ctx, parent)
}

// provisionSimpleImageDir writes a minimal "FROM <base>" Dockerfile to
// a fresh temp directory, for an auto-provisioned simple target that
// has no image directory of its own.
func provisionSimpleImageDir(target recipe.BuildTarget, baseImage string) (string, error) {
	dir := filepath.Join(os.TempDir(), "pkger-simple-"+target.String()+"-"+randname.String(8))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", err
	}
	dockerfile := fmt.Sprintf("FROM %s\n", baseImage)
	if err := ioutil.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
