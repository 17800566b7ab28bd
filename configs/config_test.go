package configs

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkger-config-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yml")
	content := `
recipes_dir: /data/recipes
output_dir: /data/output
docker_uri: unix:///var/run/docker.sock
gpg_key: release-key
images:
  - image: debian10
    build_target: deb
ssh:
  host: git.example.com
  user: git
custom_simple_images:
  debian10: true
`
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "/data/recipes", cfg.RecipesDir)
	require.Equal(t, "/data/output", cfg.OutputDir)
	require.Equal(t, "release-key", cfg.GPGKeyName)
	require.Len(t, cfg.Images, 1)
	require.Equal(t, "debian10", cfg.Images[0].Image)
	require.Equal(t, "deb", cfg.Images[0].Target)
	require.NotNil(t, cfg.SSH)
	require.Equal(t, "git.example.com", cfg.SSH.Host)
	require.True(t, cfg.CustomSimpleImages["debian10"])
}

func TestSaveConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkger-config-save-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "nested", "config.yml")
	cfg := Default()
	cfg.RecipesDir = "/r"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, "/r", loaded.RecipesDir)
}
