package build

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"

	"github.com/pkger-build/pkger/build/patch"
	"github.com/pkger-build/pkger/build/pkgassemble"
	"github.com/pkger-build/pkger/build/script"
	"github.com/pkger-build/pkger/build/source"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/keystore"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

type nilKeyStore struct{}

func (nilKeyStore) Key(name string) ([]byte, string, error) { return nil, "", nil }

func newTestJob(t *testing.T, engine *container.FakeEngine, r *recipe.Recipe, outputDir, imageDir string) *Job {
	t.Helper()
	logger := hclog.NewNullLogger()
	tracer := mocktracer.New()
	renderer := template.NewDefaultRenderer()

	store, err := image.Load(filepath.Join(t.TempDir(), "state.gob"))
	require.NoError(t, err)

	target := recipe.NewRecipeTarget(r.Name, recipe.ImageTarget{Image: "debian10", Target: recipe.Gzip})
	buildCtx := NewContext("session-1", r, target, t.TempDir(), imageDir, engine, renderer, keystore.KeyStore(nilKeyStore{}), store, outputDir, false, true, "", nil)

	imageBuilder := image.NewBuilder(engine, renderer, logger, tracer)
	fetcher := source.NewFetcher(logger, tracer)
	patcher := patch.NewApplier(logger, tracer)
	scripts := script.NewRunner(logger, tracer)
	assembler := pkgassemble.NewAssembler(renderer, keystore.KeyStore(nilKeyStore{}), logger, tracer)

	return NewJob(buildCtx, imageBuilder, fetcher, patcher, scripts, assembler, logger, tracer)
}

func TestJobRunHappyPath(t *testing.T) {
	engine := container.NewFakeEngine()
	engine.Images["debian10:latest"] = true

	imageDir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(imageDir, "Dockerfile"), []byte("FROM debian:10\n"), 0o644))
	engine.Responses["cat /etc/issue /etc/os-release"] = container.Output{Stdout: []string{`ID="debian"`, `VERSION_ID="10"`}}

	outputDir := t.TempDir()
	r := &recipe.Recipe{Name: "htop", Version: "3.0.5", Release: "1", Arch: "amd64"}

	job := newTestJob(t, engine, r, outputDir, imageDir)
	result := job.Run(context.Background(), nil)

	require.NoError(t, result.Err)
	require.Equal(t, Done, result.State)
	require.Contains(t, result.ArtifactPath, "htop-3.0.5.tar.gz")

	_, statErr := os.Stat(result.ArtifactPath)
	require.NoError(t, statErr)
}

func TestJobRunScriptFailureRemovesContainer(t *testing.T) {
	engine := container.NewFakeEngine()
	engine.Images["debian10:latest"] = true

	imageDir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(imageDir, "Dockerfile"), []byte("FROM debian:10\n"), 0o644))
	engine.Responses["cat /etc/issue /etc/os-release"] = container.Output{Stdout: []string{`ID="debian"`, `VERSION_ID="10"`}}
	engine.Responses["make"] = container.Output{ExitCode: 1, Stderr: []string{"build broke"}}

	outputDir := t.TempDir()
	r := &recipe.Recipe{
		Name: "htop", Version: "3.0.5", Release: "1", Arch: "amd64",
		BuildScript: []recipe.ScriptStep{{Cmd: "make"}},
	}

	job := newTestJob(t, engine, r, outputDir, imageDir)
	result := job.Run(context.Background(), nil)

	require.Error(t, result.Err)
	require.Equal(t, Failed, result.State)
	require.NotEmpty(t, engine.Removed)
}
