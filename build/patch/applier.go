// Package patch implements component F (spec.md §4.F): collecting and
// applying patches inside a job's container. Patch failures are
// tolerated by design — see Apply.
package patch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/recipe"
)

// Applier is component F.
type Applier struct {
	logger hclog.Logger
	tracer opentracing.Tracer
}

// NewApplier returns an Applier.
func NewApplier(logger hclog.Logger, tracer opentracing.Tracer) *Applier {
	return &Applier{logger: logger, tracer: tracer}
}

// collected is one patch resolved to its in-container location.
type collected struct {
	entry    recipe.PatchEntry
	location string
}

// Apply resolves patches for image, collects them into the container's
// tmpDir/patches, and runs `patch -p<strip-level>` against bldDir for
// each. A failing patch is logged as a warning and does NOT fail the
// job, per spec.md §4.F.
func (a *Applier) Apply(ctx context.Context, parent opentracing.SpanContext, h *container.Handle,
	patches []recipe.PatchEntry, image, recipeDir, bldDir, tmpDir string) error {

	span := a.tracer.StartSpan("patch-apply", opentracing.ChildOf(parent))
	defer span.Finish()

	collectedPatches, err := a.collect(ctx, span.Context(), h, patches, image, recipeDir, tmpDir)
	if err != nil {
		return err
	}

	for _, c := range collectedPatches {
		cmd := fmt.Sprintf("patch -p%d < %s", c.entry.StripLevel, c.location)
		if _, err := h.CheckedExec(ctx, container.NewExecSpec(cmd).WithWorkingDir(bldDir)); err != nil {
			a.logger.Warn("applying patch failed, continuing", "patch", c.entry.Patch, "reason", err)
		}
	}

	return nil
}

// collect classifies each applicable patch entry's path (http URL,
// absolute host path, or recipe-relative path), bundles the host-side
// ones into a single tar upload, and unpacks them into
// tmpDir/patches inside the container.
func (a *Applier) collect(ctx context.Context, parent opentracing.SpanContext, h *container.Handle,
	patches []recipe.PatchEntry, image, recipeDir, tmpDir string) ([]collected, error) {

	span := a.tracer.StartSpan("patch-collect", opentracing.ChildOf(parent))
	defer span.Finish()

	patchDir := tmpDir + "/patches"
	if _, err := h.CheckedExec(ctx, container.NewExecSpec("mkdir -p "+patchDir)); err != nil {
		return nil, err
	}

	var out []collected
	var toCopy []string

	for _, entry := range patches {
		if !entry.AppliesToImage(image) {
			continue
		}

		src := entry.Patch
		switch {
		case strings.HasPrefix(src, "http"):
			if _, err := h.CheckedExec(ctx, container.NewExecSpec("curl -LO "+src).WithWorkingDir(patchDir)); err != nil {
				return nil, err
			}
			out = append(out, collected{entry: entry, location: filepath.Join(patchDir, lastSegment(src))})
		case filepath.IsAbs(src):
			out = append(out, collected{entry: entry, location: filepath.Join(patchDir, filepath.Base(src))})
			toCopy = append(toCopy, src)
		default:
			out = append(out, collected{entry: entry, location: filepath.Join(patchDir, filepath.Base(src))})
			toCopy = append(toCopy, filepath.Join(recipeDir, src))
		}
	}

	if len(toCopy) == 0 {
		return out, nil
	}

	if err := h.UploadFiles(ctx, patchDir, toCopy); err != nil {
		return nil, err
	}

	return out, nil
}

func lastSegment(url string) string {
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}
