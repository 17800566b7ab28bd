package schedule

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"

	"github.com/pkger-build/pkger/build"
	"github.com/pkger-build/pkger/configs"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/internal/testutil"
	"github.com/pkger-build/pkger/keystore"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

type fakeLoader struct {
	recipes map[string]*recipe.Recipe
}

func (l *fakeLoader) Load(recipesDir, name string) (*recipe.Recipe, error) {
	r, ok := l.recipes[name]
	if !ok {
		return nil, fmt.Errorf("recipe not found: %s", name)
	}
	return r, nil
}

func (l *fakeLoader) List(recipesDir string) ([]string, error) {
	names := make([]string, 0, len(l.recipes))
	for n := range l.recipes {
		names = append(names, n)
	}
	return names, nil
}

type nilKeyStore struct{}

func (nilKeyStore) Key(name string) ([]byte, string, error) { return nil, "", nil }

// TestExpandCompletenessAndMissingImage covers spec.md §8 property 1:
// the expansion matrix produces one task per (recipe, image) cell, and
// an unknown image reference is skipped with a warning rather than
// failing the whole expansion.
func TestExpandCompletenessAndMissingImage(t *testing.T) {
	loader := &fakeLoader{recipes: map[string]*recipe.Recipe{
		"htop": {Name: "htop", Images: []string{"debian10", "ghost-image"}},
	}}
	images := []configs.ImageEntry{
		{Image: "debian10", Target: "deb"},
	}

	tasks, err := Expand(BuildOpts{All: true}, "/recipes", loader, images, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "debian10", tasks[0].Image.Image)
	require.Equal(t, recipe.Deb, tasks[0].Image.Target)
}

// TestExpandAllImagesRecipe covers the all_images=true expansion cell:
// every configured image is targeted regardless of the recipe's own
// image list.
func TestExpandAllImagesRecipe(t *testing.T) {
	loader := &fakeLoader{recipes: map[string]*recipe.Recipe{
		"htop": {Name: "htop", AllImages: true},
	}}
	images := []configs.ImageEntry{
		{Image: "debian10", Target: "deb"},
		{Image: "fedora33", Target: "rpm"},
	}

	tasks, err := Expand(BuildOpts{All: true}, "/recipes", loader, images, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}

// TestExpandSimple covers the simple-target expansion cell: each
// (recipe, simple-target) pair is expanded as an auto-provisioned task
// with no configured image lookup.
func TestExpandSimple(t *testing.T) {
	loader := &fakeLoader{recipes: map[string]*recipe.Recipe{
		"htop": {Name: "htop"},
	}}

	tasks, err := Expand(BuildOpts{Simple: []recipe.BuildTarget{recipe.Gzip}}, "/recipes", loader, nil, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.True(t, tasks[0].Simple)
	require.Equal(t, "debian:stable", tasks[0].BaseImage)
}

func newTestScheduler(t *testing.T, engine container.Engine) (*Scheduler, *image.Store) {
	t.Helper()
	store, err := image.Load(filepath.Join(t.TempDir(), "state.gob"))
	require.NoError(t, err)

	renderer := template.NewDefaultRenderer()
	sched := NewScheduler(engine, renderer, keystore.KeyStore(nilKeyStore{}), store, hclog.NewNullLogger(), mocktracer.New(), "session-1")
	return sched, store
}

// TestSchedulerCancellationResolvesOutstandingJobs covers the
// not-yet-started half of spec.md §8 property 7: a watch that's already
// flipped before RunTasks is even called resolves every task as
// Cancelled without a single job ever reaching ContainerUp.
func TestSchedulerCancellationResolvesOutstandingJobs(t *testing.T) {
	engine := container.NewFakeEngine()
	sched, _ := newTestScheduler(t, engine)
	sched.Stop()

	tasks := []Task{
		{Recipe: &recipe.Recipe{Name: "htop"}, Image: recipe.ImageTarget{Image: "debian10", Target: recipe.Gzip}},
		{Recipe: &recipe.Recipe{Name: "wget"}, Image: recipe.ImageTarget{Image: "debian10", Target: recipe.Gzip}},
	}

	summary, runErr := sched.RunTasks(context.Background(), nil, tasks, RunParams{
		RecipesDir:    t.TempDir(),
		ImagesDir:     t.TempDir(),
		HostOutputDir: t.TempDir(),
		Quiet:         true,
	})

	require.Error(t, runErr)
	require.True(t, summary.Failed)
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		require.Equal(t, build.Cancelled, r.State)
		require.Contains(t, r.Err.Error(), "cancelled")
	}
}

// blockingExecEngine wraps a FakeEngine, blocking the Exec call whose
// raw command equals blockOn until release is closed. started fires
// once, the instant that call is reached — letting a test synchronize
// with a job that's already past ContainerUp, mid build-script.
type blockingExecEngine struct {
	*container.FakeEngine
	blockOn string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingExecEngine(inner *container.FakeEngine, blockOn string) *blockingExecEngine {
	return &blockingExecEngine{
		FakeEngine: inner,
		blockOn:    blockOn,
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (b *blockingExecEngine) Exec(ctx context.Context, id string, spec *container.ExecSpec) (container.Output, error) {
	if spec.RawCmd() == b.blockOn {
		b.once.Do(func() { close(b.started) })
		<-b.release
	}
	return b.FakeEngine.Exec(ctx, id, spec)
}

// TestSchedulerCancellationDuringRunningJob covers the other half of
// property 7, and scenario E6 directly: a job that is genuinely
// underway — blocked mid build-script, long past ContainerUp — must
// still resolve Cancelled the instant Stop fires, while its container
// is still torn down once the script step actually returns (spec.md
// §4.J, §5; property 4's container-lifecycle invariant).
func TestSchedulerCancellationDuringRunningJob(t *testing.T) {
	inner := container.NewFakeEngine()
	inner.Responses["cat /etc/issue /etc/os-release"] = container.Output{
		Stdout: []string{`ID="debian"`, `VERSION_ID="10"`},
	}
	engine := newBlockingExecEngine(inner, "sleep-step")

	imagesDir := t.TempDir()
	imageDir := filepath.Join(imagesDir, "debian10")
	require.NoError(t, os.MkdirAll(imageDir, 0o755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(imageDir, "Dockerfile"), []byte("FROM debian:10\n"), 0o644))

	sched, _ := newTestScheduler(t, engine)

	tasks := []Task{
		{
			Recipe: &recipe.Recipe{
				Name:        "htop",
				Version:     "3.0.5",
				Release:     "1",
				Arch:        "amd64",
				BuildScript: []recipe.ScriptStep{{Cmd: "sleep-step"}},
			},
			Image: recipe.ImageTarget{Image: "debian10", Target: recipe.Gzip},
		},
	}

	resultCh := make(chan Summary, 1)
	go func() {
		summary, _ := sched.RunTasks(context.Background(), nil, tasks, RunParams{
			RecipesDir:    t.TempDir(),
			ImagesDir:     imagesDir,
			HostOutputDir: t.TempDir(),
			Quiet:         true,
		})
		resultCh <- summary
	}()

	<-engine.started // the job is now blocked inside its build script, well past ContainerUp
	sched.Stop()
	close(engine.release) // let the job itself run to completion in the background

	var summary Summary
	testutil.MustEventually(t, func() error {
		select {
		case summary = <-resultCh:
			return nil
		default:
			return fmt.Errorf("job result not ready yet")
		}
	}, 10*time.Millisecond, 2*time.Second)
	require.Len(t, summary.Results, 1)
	require.Equal(t, build.Cancelled, summary.Results[0].State)
	require.Contains(t, summary.Results[0].Err.Error(), "cancelled")
	require.NotEmpty(t, inner.Removed)
}

// TestSchedulerPersistsStoreAndPrunes covers spec.md §4.J's end-of-run
// steps: a dirty ImagesState is saved, and the session's containers are
// pruned regardless of per-job outcome.
func TestSchedulerPersistsStoreAndPrunes(t *testing.T) {
	engine := container.NewFakeEngine()
	leftoverID, err := engine.CreateContainer(context.Background(), "debian10:latest", false,
		map[string]string{build.SessionLabelKey: "session-1"})
	require.NoError(t, err)

	sched, store := newTestScheduler(t, engine)

	store.Update(recipe.NewRecipeTarget("htop", recipe.ImageTarget{Image: "debian10", Target: recipe.Gzip}),
		image.NewState("sha256:x", "debian10", "latest", image.Os{}, time.Now(), nil, false))

	summary, _ := sched.RunTasks(context.Background(), nil, nil, RunParams{
		RecipesDir:    t.TempDir(),
		ImagesDir:     t.TempDir(),
		HostOutputDir: t.TempDir(),
	})

	require.False(t, store.HasChanged())
	require.Contains(t, engine.Removed, leftoverID)
	require.Equal(t, uint64(1024), summary.ReclaimedBytes)
}
