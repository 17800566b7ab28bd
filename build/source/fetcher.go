// Package source implements component E (spec.md §4.E): acquiring recipe
// sources (git, HTTP, or host filesystem) into a job's container and
// expanding any recognized archive into the build directory.
package source

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

// archiveExpandScript is run inside the container after a non-git fetch
// to expand any recognized archive in tmpDir into bldDir, leaving
// non-archives copied verbatim, per spec.md §4.E.
const archiveExpandScript = `
for file in *; do
  if [[ $file =~ (.*[.]tar.*|.*[.](tgz|tbz|txz|tlz|tsz|taz|tz)) ]]; then
    tar xvf "$file" -C %s
  elif [[ $file == *.zip ]]; then
    unzip "$file" -d %s
  else
    cp -v "$file" %s
  fi
done
`

// Vars are the job-specific values recipe.source is rendered against
// before scheme dispatch, supplementing the original implementation's
// template pass over the source URL (original_source/pkger-core/src/
// build/remote.rs).
type Vars struct {
	Recipe string
	Image  string
	Target string
	OutDir string
}

// Fetcher is component E.
type Fetcher struct {
	logger hclog.Logger
	tracer opentracing.Tracer
}

// NewFetcher returns a Fetcher.
func NewFetcher(logger hclog.Logger, tracer opentracing.Tracer) *Fetcher {
	return &Fetcher{logger: logger, tracer: tracer}
}

// Fetch acquires r's source into h, following spec.md §4.E's selection
// order: git, then rendered recipe.source (http vs filesystem), then
// archive expansion from tmpDir into bldDir.
func (f *Fetcher) Fetch(ctx context.Context, parent opentracing.SpanContext, h *container.Handle,
	r *recipe.Recipe, renderer template.Renderer, vars Vars, recipeDir, bldDir, tmpDir string, quiet bool) error {

	span := f.tracer.StartSpan("source-fetch", opentracing.ChildOf(parent))
	defer span.Finish()

	if r.Git != nil {
		return f.fetchGit(ctx, span.Context(), h, r.Git, bldDir)
	}

	if r.Source == "" {
		return nil
	}

	rendered, err := renderer.Render("source", r.Source, vars)
	if err != nil {
		return &buildErrors.SourceFetchFailed{Source: r.Source, Reason: err}
	}
	sourceStr := string(rendered)

	if strings.HasPrefix(sourceStr, "http://") || strings.HasPrefix(sourceStr, "https://") {
		if err := f.fetchHTTP(ctx, h, sourceStr, tmpDir); err != nil {
			return &buildErrors.SourceFetchFailed{Source: sourceStr, Reason: err}
		}
	} else {
		path := sourceStr
		if !filepath.IsAbs(path) {
			path = filepath.Join(recipeDir, path)
		}
		if err := f.fetchFS(ctx, h, []string{path}, tmpDir); err != nil {
			return &buildErrors.SourceFetchFailed{Source: sourceStr, Reason: err}
		}
	}

	return f.expandArchives(ctx, h, tmpDir, bldDir)
}

// fetchGit clones repo on the host (go-git has no container-native
// clone) and uploads the resulting tree into the container's bldDir, a
// shallow-recursive, single-branch clone per spec.md §4.E.
func (f *Fetcher) fetchGit(ctx context.Context, parent opentracing.SpanContext, h *container.Handle, repo *recipe.GitSource, bldDir string) error {
	span := f.tracer.StartSpan("fetch-git", opentracing.ChildOf(parent))
	defer span.Finish()
	span.SetTag("url", repo.URL)

	f.logger.Info("cloning git source", "url", repo.URL, "branch", repo.Branch)

	tmp, err := ioutil.TempDir("", "pkger-git-clone-")
	if err != nil {
		return &buildErrors.SourceFetchFailed{Source: repo.URL, Reason: err}
	}
	defer os.RemoveAll(tmp)

	opts := &git.CloneOptions{
		URL:               repo.URL,
		SingleBranch:      true,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		Depth:             1,
	}
	if repo.Branch != "" {
		opts.ReferenceName = gitplumbing.NewBranchReferenceName(repo.Branch)
	}

	if _, err := git.PlainCloneContext(ctx, tmp, false, opts); err != nil {
		return &buildErrors.SourceFetchFailed{Source: repo.URL, Reason: err}
	}

	entries, err := ioutil.ReadDir(tmp)
	if err != nil {
		return &buildErrors.SourceFetchFailed{Source: repo.URL, Reason: err}
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, filepath.Join(tmp, e.Name()))
	}

	return h.UploadFiles(ctx, bldDir, paths)
}

// fetchHTTP downloads source into dest inside the container via curl,
// matching spec.md §4.E's `fetch_http`.
func (f *Fetcher) fetchHTTP(ctx context.Context, h *container.Handle, source, dest string) error {
	f.logger.Info("fetching http source", "url", source, "dest", dest)
	_, err := h.CheckedExec(ctx, container.NewExecSpec("curl -LO "+source).WithWorkingDir(dest))
	return err
}

// fetchFS tars the given host paths and uploads them to dest inside the
// container, matching spec.md §4.E's `fetch_fs`.
func (f *Fetcher) fetchFS(ctx context.Context, h *container.Handle, paths []string, dest string) error {
	f.logger.Info("copying filesystem source", "paths", paths, "dest", dest)
	return h.UploadFiles(ctx, dest, paths)
}

// expandArchives runs the archive-detection loop inside the container,
// expanding recognized archives from tmpDir into bldDir and copying
// anything else verbatim.
func (f *Fetcher) expandArchives(ctx context.Context, h *container.Handle, tmpDir, bldDir string) error {
	script := fmt.Sprintf(archiveExpandScript, bldDir, bldDir, bldDir)
	_, err := h.CheckedExec(ctx, container.NewExecSpec(script).
		WithShell("/bin/bash").
		WithWorkingDir(tmpDir))
	if err != nil {
		return &buildErrors.ArchiveExtractFailed{Archive: tmpDir, Reason: err}
	}
	return nil
}
