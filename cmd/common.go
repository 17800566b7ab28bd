// Package cmd holds the flag/config plumbing and resource wiring shared
// by every subcommand, the same role the teacher's cmd/common.go plays
// for its storage-provider flags.
package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"

	"github.com/pkger-build/pkger/configs"
	"github.com/pkger-build/pkger/container"
	"github.com/pkger-build/pkger/image"
	"github.com/pkger-build/pkger/keystore"
	"github.com/pkger-build/pkger/recipe"
	"github.com/pkger-build/pkger/template"
)

// ConfigFlags carries the `--config`/`--env` flags every subcommand that
// touches recipes, images, or output shares.
type ConfigFlags struct {
	ConfigPath string
	EnvPath    string
	DockerURI  string
}

// NewConfigFlags returns a ConfigFlags with its defaults set.
func NewConfigFlags() *ConfigFlags {
	return &ConfigFlags{ConfigPath: "pkger.yaml"}
}

// FlagSet returns the flag set for ConfigFlags.
func (f *ConfigFlags) FlagSet() *pflag.FlagSet {
	set := &pflag.FlagSet{}
	set.StringVar(&f.ConfigPath, "config", f.ConfigPath, "Path to the pkger configuration file")
	set.StringVar(&f.EnvPath, "env", "", "Path to an optional .env overlay")
	set.StringVar(&f.DockerURI, "docker", "", "Docker daemon URI, overrides the config file and DOCKER_HOST")
	return set
}

// LoadConfig reads the configuration file named by f.ConfigPath, with
// f.DockerURI (if set) overriding the file's docker_uri entry.
func (f *ConfigFlags) LoadConfig() (*configs.Config, error) {
	cfg, err := configs.Load(f.ConfigPath, f.EnvPath)
	if err != nil {
		return nil, err
	}
	if f.DockerURI != "" {
		cfg.DockerURI = f.DockerURI
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resources bundles the concrete collaborators every build/list/
// clean-cache invocation wires up once: the engine connection, the
// persistent image-state store, the recipe loader, the template
// renderer, and the GPG keystore.
type Resources struct {
	Engine   container.Engine
	Store    *image.Store
	Loader   recipe.Loader
	Renderer template.Renderer
	Keys     keystore.KeyStore
}

// NewResources connects to the Docker engine named by cfg.DockerURI,
// loads the image-state store from the user's cache directory, and
// wires the default recipe loader, template renderer, and a
// file-backed keystore from cfg's GPG settings.
func NewResources(cfg *configs.Config, logger hclog.Logger) (*Resources, error) {
	engine, err := container.NewDockerEngineWithHost(cfg.DockerURI, logger.Named("engine"))
	if err != nil {
		return nil, err
	}

	statePath := configs.StatePath()
	store, err := image.Load(statePath)
	if err != nil {
		if _, ok := err.(*image.ErrStateCorrupt); !ok {
			return nil, err
		}
		logger.Warn("image state file is corrupt, starting from an empty state", "path", statePath, "reason", err)
		store = image.New(statePath)
	}

	return &Resources{
		Engine:   engine,
		Store:    store,
		Loader:   recipe.NewDefaultLoader(),
		Renderer: template.NewDefaultRenderer(),
		Keys:     keystore.NewFileKeyStore(cfg.GPGKeyPath, ""),
	}, nil
}
