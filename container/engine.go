// Package container implements component A/B of the build engine: a
// thin, engine-agnostic handle over one running container plus the
// single shell-exec invocation builder used to drive it. The concrete
// container engine (Docker) lives behind the Engine interface so the
// rest of the build pipeline never imports the Docker client directly.
package container

import (
	"context"
	"io"
)

// BuildEvent is one line of an image build's event stream, decoded from
// the engine's JSON stream the way the teacher's dockerOutStream /
// dockerErrorLine pair does (pkg/containers/docker.go).
type BuildEvent struct {
	Stream string
	Error  string
	Digest string
}

// Engine is the container-engine boundary spec.md §1 calls an external
// collaborator: everything ContainerHandle and the rest of the build
// pipeline need from a container runtime, kept narrow enough that a
// fake can back it in tests.
type Engine interface {
	// ImageExists reports whether tag resolves to a local image.
	ImageExists(ctx context.Context, tag string) (bool, error)

	// BuildImage builds an image from the tar stream read from
	// buildContext, using dockerfilePath within that context, tagged as
	// tag. Events are emitted on the returned channel as the build
	// streams; the channel is closed when the build ends, successfully
	// or not.
	BuildImage(ctx context.Context, buildContext io.Reader, dockerfilePath, tag string) (<-chan BuildEvent, error)

	// CreateContainer creates (but does not start) a container from
	// image, returning its engine-assigned ID. labels are applied
	// verbatim, e.g. the per-session label SessionCleaner prunes by.
	CreateContainer(ctx context.Context, image string, tty bool, labels map[string]string) (string, error)

	// StartContainer starts a previously created container.
	StartContainer(ctx context.Context, id string) error

	// Exec runs spec inside the container named by id and blocks for
	// its output.
	Exec(ctx context.Context, id string, spec *ExecSpec) (Output, error)

	// UploadFiles copies local paths to destDir inside the container.
	UploadFiles(ctx context.Context, id string, destDir string, localPaths []string) error

	// DownloadFiles copies srcPaths from inside the container to destDir
	// on the host, filtering to regular files only.
	DownloadFiles(ctx context.Context, id string, srcPaths []string, destDir string) error

	// CopyFrom concatenates the tar stream for path into memory and
	// returns it verbatim, for callers that need the raw archive rather
	// than files extracted to disk (PackageAssembler's gzip target).
	CopyFrom(ctx context.Context, id string, path string) ([]byte, error)

	// RemoveContainer force-removes the container and its volumes,
	// best-effort: errors are for the caller to log, never fatal.
	RemoveContainer(ctx context.Context, id string) error

	// PruneContainers removes stopped containers matching label and
	// returns the number of bytes reclaimed, for SessionCleaner.
	PruneContainers(ctx context.Context, label string) (uint64, error)
}
