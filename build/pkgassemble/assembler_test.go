package pkgassemble

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"

	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

type noKeyStore struct{}

func (noKeyStore) Key(name string) ([]byte, string, error) { return nil, "", nil }

func testSetup(t *testing.T) (*Assembler, *container.Handle, *container.FakeEngine, string) {
	t.Helper()
	engine := container.NewFakeEngine()
	tracer := mocktracer.New()
	logger := hclog.NewNullLogger()

	h, err := container.Spawn(context.Background(), engine, logger, tracer, nil, "debian:10", nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Remove(context.Background()) })

	outDir, err := ioutil.TempDir("", "pkger-assemble-out-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(outDir) })

	a := NewAssembler(template.NewDefaultRenderer(), noKeyStore{}, logger, tracer)
	return a, h, engine, outDir
}

func testRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name:    "htop",
		Version: "3.0.5",
		Release: "1",
		Arch:    "amd64",
	}
}

func TestAssembleDeb(t *testing.T) {
	a, h, engine, outDir := testSetup(t)
	engine.Responses["du -s ."] = container.Output{Stdout: []string{"1024\t."}}

	path, err := a.Assemble(context.Background(), nil, h, Params{
		Recipe:          testRecipe(),
		Target:          recipe.Deb,
		ImageState:      image.State{OS: image.Os{Name: "debian", Version: "10"}},
		ContainerOutDir: "/out",
		TmpDir:          "/tmp",
		OutputDir:       outDir,
	})
	require.NoError(t, err)
	require.Contains(t, path, "htop-3.0.5-1.amd64.deb")
}

func TestAssembleRpm(t *testing.T) {
	a, h, _, outDir := testSetup(t)

	path, err := a.Assemble(context.Background(), nil, h, Params{
		Recipe:          testRecipe(),
		Target:          recipe.Rpm,
		ImageState:      image.State{OS: image.Os{Name: "fedora"}},
		ContainerOutDir: "/out",
		TmpDir:          "/tmp",
		OutputDir:       outDir,
	})
	require.NoError(t, err)
	require.Contains(t, path, "htop-3.0.5-1.amd64.rpm")
}

func TestAssemblePkg(t *testing.T) {
	a, h, engine, outDir := testSetup(t)
	engine.Responses["md5sum /tmp/htop-3.0.5-1-amd64/bld/htop-3.0.5-1-amd64.tar.gz"] = container.Output{Stdout: []string{"deadbeef  file"}}

	path, err := a.Assemble(context.Background(), nil, h, Params{
		Recipe:          testRecipe(),
		Target:          recipe.Pkg,
		ImageState:      image.State{OS: image.Os{Name: "arch"}},
		ContainerOutDir: "/out",
		TmpDir:          "/tmp",
		OutputDir:       outDir,
	})
	require.NoError(t, err)
	require.Contains(t, path, "htop-3.0.5-1-amd64.pkg.tar.zst")
}

func TestAssembleGzip(t *testing.T) {
	a, h, _, outDir := testSetup(t)

	path, err := a.Assemble(context.Background(), nil, h, Params{
		Recipe:          testRecipe(),
		Target:          recipe.Gzip,
		ImageState:      image.State{OS: image.Os{Name: "debian"}},
		ContainerOutDir: "/out",
		TmpDir:          "/tmp",
		OutputDir:       outDir,
	})
	require.NoError(t, err)
	require.Contains(t, path, "htop-3.0.5.tar.gz")

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestSignNoOpWithoutKey(t *testing.T) {
	a, h, _, _ := testSetup(t)
	err := a.signDeb(context.Background(), h, Params{}, "/pkg.deb")
	require.NoError(t, err)
}

func TestFindKeyID(t *testing.T) {
	lines := []string{
		"uid:u::::1234567890::ABCDEF01::my-key-name <e@x.com>:",
	}
	require.Equal(t, "ABCDEF01", findKeyID(lines, "my-key-name"))
}
