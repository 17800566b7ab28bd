package pkgassemble

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"io/ioutil"
	"path/filepath"

	buildErrors "github.com/pkger-build/pkger/build/errors"
	"github.com/pkger-build/pkger/container"
)

// buildGzip copies the raw out-dir tar stream out of the container and
// recompresses it as a gzip archive on the host, preserving the tar's
// directory structure rather than re-tarring extracted files.
func (a *Assembler) buildGzip(ctx context.Context, h *container.Handle, p Params) (string, error) {
	archiveName := p.Recipe.PackageName(p.Target, p.Recipe.Arch) + ".tar.gz"

	tarBytes, err := h.CopyFrom(ctx, p.ContainerOutDir)
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "gzip", Reason: err}
	}

	gzBytes, err := gzipTar(tarBytes)
	if err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "gzip", Reason: err}
	}

	dest := filepath.Join(p.OutputDir, archiveName)
	if err := ioutil.WriteFile(dest, gzBytes, 0o644); err != nil {
		return "", &buildErrors.PackageBuildFailed{Target: "gzip", Reason: err}
	}
	return dest, nil
}

// gzipTar re-reads the tar stream and re-emits it gzip-compressed,
// rather than gzipping the raw bytes directly, so the result is a valid
// streamed tar.gz even if the source stream had trailing padding.
func gzipTar(tarBytes []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	gw := gzip.NewWriter(buf)
	tw := tar.NewWriter(gw)

	tr := tar.NewReader(bytes.NewReader(tarBytes))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
