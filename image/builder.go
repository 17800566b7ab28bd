package image

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

// Builder is component D (spec.md §4.D): produces an image State for a
// given recipe target, owning the freshness rule and the two-stage
// (base + dependency-cached) build.
type Builder struct {
	engine   container.Engine
	renderer template.Renderer
	logger   hclog.Logger
	tracer   opentracing.Tracer
}

// NewBuilder returns a Builder.
func NewBuilder(engine container.Engine, renderer template.Renderer, logger hclog.Logger, tracer opentracing.Tracer) *Builder {
	return &Builder{engine: engine, renderer: renderer, logger: logger, tracer: tracer}
}

// EnsureImage implements spec.md §4.D's freshness rule and scratch build.
// It returns the State to use for this job: either a reused cache entry
// or a freshly built "latest" image, the store having been updated in
// the latter case.
func (b *Builder) EnsureImage(ctx context.Context, parent opentracing.SpanContext, imageDir string,
	target recipe.RecipeTarget, deps []string, store *Store, simple, quiet bool) (State, error) {

	span := b.tracer.StartSpan("image-build", opentracing.ChildOf(parent))
	defer span.Finish()
	span.SetTag("target", target.String())

	logger := b.logger.With("target", target.String())

	if cached, ok := b.findCachedState(imageDir, target, deps, store, simple, logger); ok {
		exists, err := b.engine.ImageExists(ctx, cached.FullTag())
		if err != nil {
			logger.Warn("failed checking image existence, rebuilding", "reason", err)
		} else if exists {
			logger.Debug("reusing cached image state", "tag", cached.Tag)
			return cached, nil
		} else {
			logger.Warn("found cached state but image doesn't exist in engine, rebuilding")
		}
	}

	return b.buildFromScratch(ctx, span.Context(), imageDir, target, store, simple, quiet, logger)
}

// findCachedState implements the freshness rule: a cached entry is
// reusable iff simple mode is set, or every file under imageDir has a
// modification time no later than the cached state's timestamp. A
// dependency-set mismatch also invalidates reuse, but the stored entry
// is never mutated or removed here — the caller simply proceeds to
// rebuild (spec.md §4.D).
func (b *Builder) findCachedState(imageDir string, target recipe.RecipeTarget, deps []string, store *Store, simple bool, logger hclog.Logger) (State, bool) {
	state, ok := store.Get(target)
	if !ok {
		return State{}, false
	}

	if !state.DepsEqual(deps) {
		logger.Info("dependencies changed, will rebuild", "old", state.DepsSlice(), "new", deps)
		return State{}, false
	}

	if simple {
		return state, true
	}

	entries, err := ioutil.ReadDir(imageDir)
	if err != nil {
		logger.Warn("failed reading image directory, rebuilding", "reason", err)
		return State{}, false
	}

	for _, entry := range entries {
		path := filepath.Join(imageDir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			logger.Warn("failed to read metadata, skipping freshness check for entry", "path", path, "reason", err)
			continue
		}
		if info.ModTime().After(state.Timestamp) {
			logger.Debug("found modified file, not using cached image", "path", path)
			return State{}, false
		}
	}

	return state, true
}

func (b *Builder) buildFromScratch(ctx context.Context, parent opentracing.SpanContext, imageDir string,
	target recipe.RecipeTarget, store *Store, simple, quiet bool, logger hclog.Logger) (State, error) {

	span := b.tracer.StartSpan("image-build-scratch", opentracing.ChildOf(parent))
	defer span.Finish()

	logger.Debug("building image from scratch")

	buildContext, err := tarDirectory(imageDir)
	if err != nil {
		return State{}, &buildErrors.ImageRead{Image: target.Image.Image, Reason: err}
	}

	tag := target.Image.Image + ":" + TagLatest
	events, err := b.engine.BuildImage(ctx, buildContext, "Dockerfile", tag)
	if err != nil {
		return State{}, &buildErrors.ImageBuildFailed{Message: err.Error()}
	}

	for event := range events {
		if event.Error != "" {
			return State{}, &buildErrors.ImageBuildFailed{Message: event.Error}
		}
		if event.Stream != "" && !quiet {
			logger.Info(event.Stream)
		}
		if event.Digest != "" {
			state, err := b.deriveState(ctx, span.Context(), event.Digest, target.Image.Image, TagLatest, nil, simple)
			if err != nil {
				return State{}, err
			}
			store.Update(target, state)
			return state, nil
		}
	}

	return State{}, &buildErrors.ImageBuildIncomplete{Image: target.Image.Image}
}

// deriveState sniffs the OS of a freshly built image by running a
// one-shot container, per spec.md §4.D.
func (b *Builder) deriveState(ctx context.Context, parent opentracing.SpanContext, id, image, tag string, deps []string, simple bool) (State, error) {
	h, err := container.Spawn(ctx, b.engine, b.logger, b.tracer, parent, image+":"+tag, nil)
	if err != nil {
		return State{}, err
	}
	defer h.Remove(ctx)

	out, err := h.Exec(ctx, container.NewExecSpec("cat /etc/issue /etc/os-release"))
	if err != nil {
		return State{}, err
	}

	os := ParseOSRelease(joinLines(out.Stdout))
	return NewState(id, image, tag, os, time.Now(), deps, simple), nil
}

func joinLines(lines []string) string {
	buf := &bytes.Buffer{}
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// BuildDepCache builds the second-stage, dependency-cached image atop
// base, per spec.md §4.D's Dockerfile template, and records the new
// State under target with tag "cached".
func (b *Builder) BuildDepCache(ctx context.Context, parent opentracing.SpanContext, base State, deps []string,
	target recipe.RecipeTarget, store *Store, quiet bool) (State, error) {

	span := b.tracer.StartSpan("image-build-depcache", opentracing.ChildOf(parent))
	defer span.Finish()

	logger := b.logger.With("target", target.String())
	logger.Info("caching image", "image", base.Image)

	pm := base.OS.PackageManager()
	if pm.Name() == "" {
		return State{}, &buildErrors.ImageBuildFailed{Message: fmt.Sprintf("no package manager found for os %q", base.OS.Name)}
	}

	dockerfile, err := b.renderer.Render("dep-cached-dockerfile", template.DepCachedDockerfile, template.DepCachedDockerfileData{
		Image:           base.Image,
		PMName:          pm.Name(),
		CleanCacheArgs:  joinArgs(pm.CleanCache()),
		UpdateReposArgs: joinArgs(pm.UpdateRepos()),
		InstallArgs:     joinArgs(pm.Install(deps)),
	})
	if err != nil {
		return State{}, err
	}

	buildContext, err := tarSingleFile("Dockerfile", dockerfile)
	if err != nil {
		return State{}, err
	}

	tag := base.Image + ":" + TagCached
	events, err := b.engine.BuildImage(ctx, buildContext, "Dockerfile", tag)
	if err != nil {
		return State{}, &buildErrors.ImageBuildFailed{Message: err.Error()}
	}

	for event := range events {
		if event.Error != "" {
			return State{}, &buildErrors.ImageBuildFailed{Message: event.Error}
		}
		if event.Stream != "" && !quiet {
			logger.Info(event.Stream)
		}
		if event.Digest != "" {
			state, err := b.deriveState(ctx, span.Context(), event.Digest, base.Image, TagCached, deps, base.Simple)
			if err != nil {
				return State{}, err
			}
			store.Update(target, state)
			return state, nil
		}
	}

	return State{}, &buildErrors.ImageBuildIncomplete{Image: base.Image}
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func tarDirectory(dir string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func tarSingleFile(name string, content []byte) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write(content); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}
