package container

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/strslice"
	docker "github.com/docker/docker/client"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// ContainerStopTimeout is how long a container is given to stop
// gracefully before it's killed, mirroring the teacher's
// pkg/containers/docker.go constant of the same purpose.
var ContainerStopTimeout = 30 * time.Second

// DockerEngine is the default Engine, backed by the real Docker daemon.
// It follows the same ImageBuild-streaming / exec-attach / wait-then-
// remove idioms as the teacher's pkg/containers/docker.go, generalized
// from a single-purpose rootfs exporter into the general-purpose
// spawn/exec/copy/remove boundary the build pipeline needs.
type DockerEngine struct {
	client *docker.Client
	logger hclog.Logger
}

// NewDockerEngine connects to the Docker daemon using the environment's
// DOCKER_HOST/DOCKER_* variables, the same as the teacher's
// containers.GetDefaultClient.
func NewDockerEngine(logger hclog.Logger) (*DockerEngine, error) {
	client, err := docker.NewEnvClient()
	if err != nil {
		return nil, errors.Wrap(err, "failed creating docker client")
	}
	return &DockerEngine{client: client, logger: logger}, nil
}

// NewDockerEngineWithHost is NewDockerEngine but overrides the daemon
// URI instead of relying on DOCKER_HOST, for the `--docker` flag and
// the config file's `docker_uri` entry.
func NewDockerEngineWithHost(uri string, logger hclog.Logger) (*DockerEngine, error) {
	if uri == "" {
		return NewDockerEngine(logger)
	}
	client, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithHost(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed creating docker client")
	}
	return &DockerEngine{client: client, logger: logger}, nil
}

func (e *DockerEngine) ImageExists(ctx context.Context, tag string) (bool, error) {
	images, err := e.client.ImageList(ctx, types.ImageListOptions{All: true})
	if err != nil {
		return false, errors.Wrap(err, "failed listing images")
	}
	for _, img := range images {
		for _, t := range img.RepoTags {
			if t == tag {
				return true, nil
			}
		}
	}
	return false, nil
}

type dockerOutStream struct {
	Stream string `json:"stream"`
	Aux    struct {
		ID string `json:"ID"`
	} `json:"aux"`
}

type dockerErrorLine struct {
	Error string `json:"error"`
}

func (e *DockerEngine) BuildImage(ctx context.Context, buildContext io.Reader, dockerfilePath, tag string) (<-chan BuildEvent, error) {
	buildResponse, err := e.client.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Dockerfile:  dockerfilePath,
		Tags:        []string{tag},
		ForceRemove: true,
		Remove:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed starting image build")
	}

	events := make(chan BuildEvent)
	go func() {
		defer buildResponse.Body.Close()
		defer close(events)

		scanner := bufio.NewScanner(buildResponse.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()

			errLine := &dockerErrorLine{}
			if json.Unmarshal([]byte(line), errLine) == nil && errLine.Error != "" {
				events <- BuildEvent{Error: errLine.Error}
				continue
			}

			out := &dockerOutStream{}
			if err := json.Unmarshal([]byte(line), out); err != nil {
				e.logger.Warn("docker build output not a stream line, skipping", "reason", err)
				continue
			}
			events <- BuildEvent{Stream: out.Stream, Digest: out.Aux.ID}
		}
		if err := scanner.Err(); err != nil {
			events <- BuildEvent{Error: err.Error()}
		}
	}()

	return events, nil
}

func (e *DockerEngine) CreateContainer(ctx context.Context, image string, tty bool, labels map[string]string) (string, error) {
	resp, err := e.client.ContainerCreate(ctx, &dockercontainer.Config{
		OpenStdin: true,
		Tty:       tty,
		Cmd:       strslice.StrSlice{"/bin/sh"},
		Image:     image,
		Labels:    labels,
	}, &dockercontainer.HostConfig{}, nil, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (e *DockerEngine) StartContainer(ctx context.Context, id string) error {
	return e.client.ContainerStart(ctx, id, types.ContainerStartOptions{})
}

func (e *DockerEngine) Exec(ctx context.Context, id string, spec *ExecSpec) (Output, error) {
	execConfig := types.ExecConfig{
		AttachStdout: spec.AttachStdout(),
		AttachStderr: spec.AttachStderr(),
		Tty:          spec.TTY(),
		Privileged:   spec.Privileged(),
		WorkingDir:   spec.WorkingDir(),
		User:         spec.User(),
		Env:          spec.Env(),
		Cmd:          spec.Cmd(),
	}

	execIDResponse, err := e.client.ContainerExecCreate(ctx, id, execConfig)
	if err != nil {
		return Output{}, errors.Wrap(err, "failed creating exec")
	}

	hijacked, err := e.client.ContainerExecAttach(ctx, execIDResponse.ID, types.ExecStartCheck{Tty: spec.TTY()})
	if err != nil {
		return Output{}, errors.Wrap(err, "failed attaching exec")
	}
	defer hijacked.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if spec.TTY() {
		io.Copy(&stdoutBuf, hijacked.Reader)
	} else {
		stdCopy(&stdoutBuf, &stderrBuf, hijacked.Reader)
	}

	inspect, err := e.client.ContainerExecInspect(ctx, execIDResponse.ID)
	if err != nil {
		return Output{}, errors.Wrap(err, "failed inspecting exec result")
	}

	return Output{
		Stdout:   splitLines(stdoutBuf.String()),
		Stderr:   splitLines(stderrBuf.String()),
		ExitCode: inspect.ExitCode,
	}, nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// stdCopy performs a best-effort split of a non-TTY exec stream. Docker
// multiplexes stdout/stderr with an 8 byte frame header per the
// dockerd wire protocol; frames whose stream byte is 2 go to stderr and
// every other frame goes to stdout. A stream that ends cleanly between
// or inside a frame's payload returns nil; a truncated header returns
// the read error.
func stdCopy(stdout, stderr *bytes.Buffer, r io.Reader) error {
	header := make([]byte, 8)
	for {
		_, err := io.ReadFull(r, header)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		frameSize := int64(header[4])<<24 | int64(header[5])<<16 | int64(header[6])<<8 | int64(header[7])
		var dst *bytes.Buffer
		if header[0] == 2 {
			dst = stderr
		} else {
			dst = stdout
		}
		if _, err := io.CopyN(dst, r, frameSize); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (e *DockerEngine) UploadFiles(ctx context.Context, id string, destDir string, localPaths []string) error {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, p := range localPaths {
		if err := addToTar(tw, p); err != nil {
			tw.Close()
			return errors.Wrapf(err, "failed archiving %q for upload", p)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return e.client.CopyToContainer(ctx, id, destDir, buf, types.CopyToContainerOptions{})
}

func addToTar(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return filepath.Walk(path, func(p string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(filepath.Dir(path), p)
			if err != nil {
				return err
			}
			return writeTarEntry(tw, p, rel, fi)
		})
	}
	return writeTarEntry(tw, path, filepath.Base(path), info)
}

func writeTarEntry(tw *tar.Writer, path, name string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
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
}

func (e *DockerEngine) DownloadFiles(ctx context.Context, id string, srcPaths []string, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, src := range srcPaths {
		reader, _, err := e.client.CopyFromContainer(ctx, id, src)
		if err != nil {
			return errors.Wrapf(err, "failed copying %q from container", src)
		}
		err = extractRegularFiles(reader, destDir)
		reader.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractRegularFiles writes only regular files from the tar stream,
// skipping directories, symlinks and devices, per the Open Question
// decision recorded for the RPM/DEB artifact copy-out path.
func extractRegularFiles(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		target := filepath.Join(destDir, filepath.Base(hdr.Name))
		data, err := ioutil.ReadAll(tr)
		if err != nil {
			return err
		}
		if err := ioutil.WriteFile(target, data, os.FileMode(hdr.Mode)); err != nil {
			return err
		}
	}
}

func (e *DockerEngine) CopyFrom(ctx context.Context, id string, path string) ([]byte, error) {
	reader, _, err := e.client.CopyFromContainer(ctx, id, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed copying %q from container", path)
	}
	defer reader.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, reader); err != nil {
		return nil, errors.Wrapf(err, "failed reading tar stream for %q", path)
	}
	return buf.Bytes(), nil
}

func (e *DockerEngine) RemoveContainer(ctx context.Context, id string) error {
	opLogger := e.logger.With("container-id", id)
	opLogger.Debug("removing container")

	go func() {
		if err := e.client.ContainerStop(ctx, id, &ContainerStopTimeout); err != nil {
			opLogger.Debug("problem stopping container gracefully, killing", "reason", err)
			e.client.ContainerKill(ctx, id, "SIGKILL")
		}
	}()

	chanOK, chanErr := e.client.ContainerWait(ctx, id, dockercontainer.WaitConditionNotRunning)
	select {
	case <-chanOK:
	case <-chanErr:
	case <-time.After(ContainerStopTimeout + 5*time.Second):
	}

	return e.client.ContainerRemove(ctx, id, types.ContainerRemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})
}

func (e *DockerEngine) PruneContainers(ctx context.Context, label string) (uint64, error) {
	args := filters.NewArgs()
	if label != "" {
		args.Add("label", label)
	}
	report, err := e.client.ContainersPrune(ctx, args)
	if err != nil {
		return 0, errors.Wrap(err, "failed pruning containers")
	}
	return report.SpaceReclaimed, nil
}
