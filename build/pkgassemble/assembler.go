// Package pkgassemble implements PackageAssembler: the final build stage
// that turns the prepared out-dir inside a running container into a
// signed deb, rpm, pkg or plain gzip artifact on the host.
package pkgassemble

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/keystore"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

// Params carries everything an Assemble call needs beyond the container
// handle: the resolved recipe, its image state, and the directories the
// rest of the build job has already established.
type Params struct {
	Recipe          *recipe.Recipe
	Target          recipe.BuildTarget
	ImageState      image.State
	ContainerOutDir string
	TmpDir          string
	OutputDir       string
	GPGKeyName      string
}

// Assembler dispatches to the target-specific build function and owns
// the shared GPG keystore and template renderer every target needs.
type Assembler struct {
	renderer template.Renderer
	keys     keystore.KeyStore
	logger   hclog.Logger
	tracer   opentracing.Tracer
}

// NewAssembler returns an Assembler.
func NewAssembler(renderer template.Renderer, keys keystore.KeyStore, logger hclog.Logger, tracer opentracing.Tracer) *Assembler {
	return &Assembler{renderer: renderer, keys: keys, logger: logger, tracer: tracer}
}

// Assemble builds the package named by p.Target and returns the absolute
// host path of the resulting artifact in p.OutputDir.
func (a *Assembler) Assemble(ctx context.Context, parent opentracing.SpanContext, h *container.Handle, p Params) (string, error) {
	span := a.tracer.StartSpan("package-assemble", opentracing.ChildOf(parent))
	defer span.Finish()
	span.SetTag("target", p.Target.String())

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: p.Target.String(), Reason: err}
	}

	switch p.Target {
	case recipe.Deb:
		return a.buildDeb(ctx, h, p)
	case recipe.Rpm:
		return a.buildRpm(ctx, h, p)
	case recipe.Pkg:
		return a.buildPkg(ctx, h, p)
	case recipe.Gzip:
		return a.buildGzip(ctx, h, p)
	default:
		return "", &buildErrors.PackageBuildFailed{Target: p.Target.String(), Reason: fmt.Errorf("unsupported build target")}
	}
}

// uploadBytes writes content to a host temp file named filename inside a
// throwaway directory and uploads it to destDir in the container, since
// container.Handle.UploadFiles only takes host paths, not raw bytes.
func uploadBytes(ctx context.Context, h *container.Handle, destDir, filename string, content []byte) error {
	tmp, err := ioutil.TempDir("", "pkger-upload-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	hostPath := filepath.Join(tmp, filename)
	if err := ioutil.WriteFile(hostPath, content, 0o644); err != nil {
		return err
	}
	return h.UploadFiles(ctx, destDir, []string{hostPath})
}
