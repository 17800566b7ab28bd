package container

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/gofrs/uuid"
)

func emptyTar() []byte {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	tw.Close()
	return buf.Bytes()
}

// FakeEngine is an in-memory Engine good enough to drive BuildJob and
// scheduler tests without a Docker daemon. Exec output and exit codes
// are scripted per command via Responses; anything not scripted
// succeeds with no output, the same permissive default the teacher's
// table-driven tests rely on elsewhere in the pack.
type FakeEngine struct {
	mu sync.Mutex

	Images            map[string]bool
	Responses         map[string]Output
	CopyFromResponses map[string][]byte
	BuildErr          error

	containers map[string]bool
	Labels     map[string]map[string]string
	Removed    []string
	Execs      []string
}

// NewFakeEngine returns an empty FakeEngine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		Images:     map[string]bool{},
		Responses:  map[string]Output{},
		containers: map[string]bool{},
	}
}

func (f *FakeEngine) ImageExists(ctx context.Context, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Images[tag], nil
}

func (f *FakeEngine) BuildImage(ctx context.Context, buildContext io.Reader, dockerfilePath, tag string) (<-chan BuildEvent, error) {
	if f.BuildErr != nil {
		return nil, f.BuildErr
	}
	io.Copy(ioutil.Discard, buildContext)

	events := make(chan BuildEvent, 2)
	events <- BuildEvent{Stream: "building " + tag}
	events <- BuildEvent{Digest: "sha256:fake"}
	close(events)

	f.mu.Lock()
	f.Images[tag] = true
	f.mu.Unlock()

	return events, nil
}

func (f *FakeEngine) CreateContainer(ctx context.Context, image string, tty bool, labels map[string]string) (string, error) {
	id := uuid.Must(uuid.NewV4()).String()
	f.mu.Lock()
	f.containers[id] = true
	if f.Labels == nil {
		f.Labels = map[string]map[string]string{}
	}
	f.Labels[id] = labels
	f.mu.Unlock()
	return id, nil
}

func (f *FakeEngine) StartContainer(ctx context.Context, id string) error {
	return nil
}

func (f *FakeEngine) Exec(ctx context.Context, id string, spec *ExecSpec) (Output, error) {
	f.mu.Lock()
	f.Execs = append(f.Execs, spec.RawCmd())
	out, ok := f.Responses[spec.RawCmd()]
	f.mu.Unlock()
	if !ok {
		return Output{ExitCode: 0}, nil
	}
	return out, nil
}

func (f *FakeEngine) UploadFiles(ctx context.Context, id string, destDir string, localPaths []string) error {
	return nil
}

func (f *FakeEngine) DownloadFiles(ctx context.Context, id string, srcPaths []string, destDir string) error {
	return nil
}

// CopyFrom returns an empty tar archive unless CopyFromResponses has a
// scripted entry for path, good enough for assembler tests that check
// gzip output shape rather than exact bytes.
func (f *FakeEngine) CopyFrom(ctx context.Context, id string, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CopyFromResponses != nil {
		if b, ok := f.CopyFromResponses[path]; ok {
			return b, nil
		}
	}
	return emptyTar(), nil
}

func (f *FakeEngine) RemoveContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
	f.Removed = append(f.Removed, id)
	return nil
}

// PruneContainers removes every tracked container whose labels contain
// an exact "key=value" match for label, returning a fixed per-container
// reclaim estimate so tests can assert on the count pruned.
func (f *FakeEngine) PruneContainers(ctx context.Context, label string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var reclaimed uint64
	for id := range f.containers {
		for k, v := range f.Labels[id] {
			if k+"="+v == label {
				delete(f.containers, id)
				delete(f.Labels, id)
				f.Removed = append(f.Removed, id)
				reclaimed += 1024
				break
			}
		}
	}
	return reclaimed, nil
}
