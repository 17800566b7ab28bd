package container

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go"

	buildErrors "github.com/pkger-build/pkger/build/errors"
)

// Handle is component A (spec.md §4.A): a single running container plus
// the operations a build job performs against it over its lifetime.
// Every operation logs through a contextual logger carrying the
// container's short ID, the same pattern the teacher's
// pkg/containers/docker.go opLogger follows.
type Handle struct {
	engine Engine
	logger hclog.Logger
	tracer opentracing.Tracer
	parent opentracing.SpanContext

	id    string
	image string

	removeOnce sync.Once
}

// Spawn creates and starts a container from image, returning a Handle
// that owns it. The returned Handle's Remove must be called at least
// once, regardless of how the job that spawned it ends.
func Spawn(ctx context.Context, engine Engine, logger hclog.Logger, tracer opentracing.Tracer, parent opentracing.SpanContext, image string, labels map[string]string) (*Handle, error) {
	span := tracer.StartSpan("container-spawn", opentracing.ChildOf(parent))
	defer span.Finish()
	span.SetTag("image", image)

	id, err := engine.CreateContainer(ctx, image, true, labels)
	if err != nil {
		return nil, &buildErrors.SpawnFailed{Image: image, Reason: err}
	}

	h := &Handle{
		engine: engine,
		logger: logger.With("container-id", shortID(id), "image", image),
		tracer: tracer,
		parent: parent,
		id:     id,
		image:  image,
	}

	if err := engine.StartContainer(ctx, id); err != nil {
		h.logger.Error("failed starting container", "reason", err)
		engine.RemoveContainer(context.Background(), id)
		return nil, &buildErrors.SpawnFailed{Image: image, Reason: err}
	}

	h.logger.Debug("container started")
	return h, nil
}

// ID returns the full engine-assigned container ID.
func (h *Handle) ID() string { return h.id }

// DisplayID returns the short, human-friendly form of the container ID
// (its first 12 characters), the way `docker ps` shows it.
func (h *Handle) DisplayID() string { return shortID(h.id) }

// Exec runs spec inside the container and returns its captured output,
// without judging the exit code.
func (h *Handle) Exec(ctx context.Context, spec *ExecSpec) (Output, error) {
	span := h.tracer.StartSpan("container-exec", opentracing.ChildOf(h.parent))
	defer span.Finish()
	span.SetTag("cmd", spec.RawCmd())

	h.logger.Debug("running exec", "cmd", spec.RawCmd())
	out, err := h.engine.Exec(ctx, h.id, spec)
	if err != nil {
		h.logger.Error("exec failed", "reason", err)
	}
	return out, err
}

// CheckedExec runs spec and turns a non-zero exit code into an
// ExecNonZero error, per spec.md §7.
func (h *Handle) CheckedExec(ctx context.Context, spec *ExecSpec) (Output, error) {
	out, err := h.Exec(ctx, spec)
	if err != nil {
		return out, err
	}
	if out.ExitCode != 0 {
		return out, &buildErrors.ExecNonZero{
			Cmd:        spec.RawCmd(),
			ExitCode:   out.ExitCode,
			LastStderr: out.LastStderr(),
		}
	}
	return out, nil
}

// UploadFiles copies localPaths into destDir inside the container.
func (h *Handle) UploadFiles(ctx context.Context, destDir string, localPaths []string) error {
	span := h.tracer.StartSpan("container-upload", opentracing.ChildOf(h.parent))
	defer span.Finish()
	span.SetTag("dest-dir", destDir)

	h.logger.Debug("uploading files", "dest-dir", destDir, "count", len(localPaths))
	return h.engine.UploadFiles(ctx, h.id, destDir, localPaths)
}

// DownloadFiles copies srcPaths from inside the container to destDir on
// the host.
func (h *Handle) DownloadFiles(ctx context.Context, srcPaths []string, destDir string) error {
	span := h.tracer.StartSpan("container-download", opentracing.ChildOf(h.parent))
	defer span.Finish()
	span.SetTag("dest-dir", destDir)

	h.logger.Debug("downloading files", "src", srcPaths, "dest-dir", destDir)
	return h.engine.DownloadFiles(ctx, h.id, srcPaths, destDir)
}

// CopyFrom concatenates the tar stream for path into memory, for
// callers that need the raw archive bytes rather than files extracted
// to disk (the gzip package target).
func (h *Handle) CopyFrom(ctx context.Context, path string) ([]byte, error) {
	span := h.tracer.StartSpan("container-copy-from", opentracing.ChildOf(h.parent))
	defer span.Finish()
	span.SetTag("path", path)

	return h.engine.CopyFrom(ctx, h.id, path)
}

// Remove force-removes the container. It is safe to call more than
// once; subsequent calls are no-ops once the first has run.
func (h *Handle) Remove(ctx context.Context) {
	h.removeOnce.Do(func() {
		span := h.tracer.StartSpan("container-remove", opentracing.ChildOf(h.parent))
		span.SetTag("container-id", h.id)
		defer span.Finish()

		h.logger.Debug("removing container")
		if err := h.engine.RemoveContainer(ctx, h.id); err != nil {
			h.logger.Warn("problem removing the container", "reason", err)
		}
	})
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
