package configs

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/jesseduffield/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/subosito/gotenv"
)

// SSHConfig carries the optional SSH credentials the engine attaches to
// BuildContext so git sources can be cloned over SSH instead of HTTPS.
type SSHConfig struct {
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	KeyPath        string `yaml:"key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
}

// ImageEntry is one entry of the top-level images list: an image
// directory name paired with the package flavor to build from it.
type ImageEntry struct {
	Image      string `yaml:"image"`
	Target     string `yaml:"build_target"`
	OSOverride string `yaml:"os_override"`
}

// Config is the top-level application configuration consumed by the
// build engine and the cmd tree, loaded from a YAML file on disk with
// an optional .env overlay for secrets that don't belong in the file
// (GPG passphrase, Docker URI overrides).
type Config struct {
	RecipesDir string `yaml:"recipes_dir"`
	ImagesDir  string `yaml:"images_dir"`
	OutputDir  string `yaml:"output_dir"`

	Images []ImageEntry `yaml:"images"`

	DockerURI string `yaml:"docker_uri"`

	GPGKeyName string `yaml:"gpg_key"`
	GPGKeyPath string `yaml:"gpg_key_path"`

	SSH *SSHConfig `yaml:"ssh"`

	// CustomSimpleImages is decoded from the custom_simple_images entry
	// and kept on the Config; nothing in the build reads it, and simple
	// targets always build from the base images schedule.SimpleBaseImage
	// returns.
	CustomSimpleImages map[string]bool `yaml:"custom_simple_images"`
}

// Default returns a Config with the directory layout firebuild's own
// CLI commands default to: everything rooted under the current
// working directory.
func Default() *Config {
	return &Config{
		RecipesDir: "recipes",
		ImagesDir:  "images",
		OutputDir:  "output",
	}
}

// Validate implements ValidatingConfig: the three directory settings
// every subcommand depends on must be set before any resources get
// wired up.
func (c *Config) Validate() error {
	if c.RecipesDir == "" {
		return errors.New("recipes_dir must be set")
	}
	if c.ImagesDir == "" {
		return errors.New("images_dir must be set")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir must be set")
	}
	return nil
}

// Load reads path as YAML into a Config. When envPath exists, it is
// loaded first via gotenv so `${VAR}`-style references inside the YAML
// file (and any process environment lookups the loaded config later
// performs) see the overlay.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := gotenv.Load(envPath); err != nil {
				return nil, errors.Wrapf(err, "failed loading env overlay %q", envPath)
			}
		}
	}

	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading config %q", path)
	}
	content = []byte(os.ExpandEnv(string(content)))

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed parsing config %q", path)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "yaml",
		Result:  cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed building config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrapf(err, "failed decoding config %q", path)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as
// needed, for the `init`/`new` scaffolding commands.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed creating config directory")
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed marshaling config")
	}
	return ioutil.WriteFile(path, out, 0o644)
}
