// Package build implements the per-job orchestration core: BuildContext
// (the value object a job threads through every component) and BuildJob
// (the state machine driving A-H to an assembled artifact).
package build

import (
	"fmt"
	"time"

	"github.com/pkger-build/pkger/configs"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/keystore"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

// SessionLabelKey is the container label key every spawned container
// carries, so SessionCleaner can find them at shutdown.
const SessionLabelKey = "pkger.session-id"

// Context is the per-job value object, spec.md §3's BuildContext: owned
// exclusively by the one BuildJob that creates it, destroyed when that
// job settles.
type Context struct {
	ID        string
	SessionID string

	Recipe      *recipe.Recipe
	Target      recipe.RecipeTarget
	RecipeDir   string // host directory the recipe was loaded from
	ImageSource string // host directory holding the image's Dockerfile

	Engine   container.Engine
	Renderer template.Renderer
	Keys     keystore.KeyStore

	BldDir string
	OutDir string
	TmpDir string

	HostOutputDir string

	States *image.Store

	Simple bool
	Quiet  bool

	GPGKeyName string
	SSHConfig  *configs.SSHConfig
}

// NewContext builds a Context with spec.md §3's deterministic id form
// "pkger-<recipe>-<image>-<epoch>" and timestamp-suffixed container
// paths, so repeated jobs in the same process never collide.
func NewContext(sessionID string, r *recipe.Recipe, target recipe.RecipeTarget, recipeDir, imageSource string,
	engine container.Engine, renderer template.Renderer, keys keystore.KeyStore, states *image.Store,
	hostOutputDir string, simple, quiet bool, gpgKeyName string, sshConfig *configs.SSHConfig) *Context {

	epoch := time.Now().UnixNano()
	id := fmt.Sprintf("pkger-%s-%s-%d", target.RecipeName, target.Image.Image, epoch)

	return &Context{
		ID:            id,
		SessionID:     sessionID,
		Recipe:        r,
		Target:        target,
		RecipeDir:     recipeDir,
		ImageSource:   imageSource,
		Engine:        engine,
		Renderer:      renderer,
		Keys:          keys,
		BldDir:        fmt.Sprintf("/tmp/%s/bld", id),
		OutDir:        fmt.Sprintf("/tmp/%s/out", id),
		TmpDir:        fmt.Sprintf("/tmp/%s/tmp", id),
		HostOutputDir: hostOutputDir,
		States:        states,
		Simple:        simple,
		Quiet:         quiet,
		GPGKeyName:    gpgKeyName,
		SSHConfig:     sshConfig,
	}
}

// SessionLabel returns the container label applied to every container
// spawned for this job.
func (c *Context) SessionLabel() string {
	return fmt.Sprintf("%s=%s", SessionLabelKey, c.SessionID)
}
