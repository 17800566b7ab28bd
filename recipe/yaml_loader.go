package recipe

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/jesseduffield/yaml"
	"github.com/pkg/errors"
)

// yamlRecipe is the on-disk shape of a recipe.yml file. Field names follow
// the attributes spec.md §3 says the engine consumes.
type yamlRecipe struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Release string `yaml:"release"`
	Arch    string `yaml:"arch"`

	AllImages bool     `yaml:"all_images"`
	Images    []string `yaml:"images"`

	BuildDepends map[string][]string `yaml:"build_depends"`

	Source string `yaml:"source"`
	Git    *struct {
		URL    string `yaml:"url"`
		Branch string `yaml:"branch"`
	} `yaml:"git"`

	Patches []struct {
		Patch      string   `yaml:"patch"`
		Images     []string `yaml:"images"`
		StripLevel int      `yaml:"strip_level"`
	} `yaml:"patches"`

	Exclude []string `yaml:"exclude"`

	ConfigureScript []yamlScriptStep `yaml:"configure_script"`
	BuildScript     []yamlScriptStep `yaml:"build_script"`
	InstallScript   []yamlScriptStep `yaml:"install_script"`

	Deb *struct {
		InstallScript  []yamlScriptStep `yaml:"install_script"`
		PostinstScript string           `yaml:"postinst_script"`
	} `yaml:"deb"`
	Rpm *struct {
		InstallScript []yamlScriptStep `yaml:"install_script"`
	} `yaml:"rpm"`
	Pkg *struct {
		InstallScript []yamlScriptStep `yaml:"install_script"`
	} `yaml:"pkg"`
}

type yamlScriptStep struct {
	Cmd    string   `yaml:"cmd"`
	Images []string `yaml:"images"`
}

func toScriptSteps(in []yamlScriptStep) []ScriptStep {
	out := make([]ScriptStep, 0, len(in))
	for _, s := range in {
		out = append(out, ScriptStep{Cmd: s.Cmd, Images: s.Images})
	}
	return out
}

// DefaultLoader is a minimal YAML-backed Loader: every recipe lives at
// <recipesDir>/<name>/recipe.yml. It performs no dependency resolution or
// transitive package lookup (non-goal, spec.md §1).
type DefaultLoader struct{}

// NewDefaultLoader returns a DefaultLoader.
func NewDefaultLoader() *DefaultLoader {
	return &DefaultLoader{}
}

// Load implements Loader.
func (l *DefaultLoader) Load(recipesDir, name string) (*Recipe, error) {
	fileName := filepath.Join(recipesDir, name, "recipe.yml")
	content, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading recipe %q", name)
	}
	decoded := &yamlRecipe{}
	if err := yaml.Unmarshal(content, decoded); err != nil {
		return nil, errors.Wrapf(err, "failed parsing recipe %q", name)
	}

	r := &Recipe{
		Name:            decoded.Name,
		Version:         decoded.Version,
		Release:         decoded.Release,
		Arch:            decoded.Arch,
		AllImages:       decoded.AllImages,
		Images:          decoded.Images,
		BuildDepends:    decoded.BuildDepends,
		Source:          decoded.Source,
		Exclude:         decoded.Exclude,
		ConfigureScript: toScriptSteps(decoded.ConfigureScript),
		BuildScript:     toScriptSteps(decoded.BuildScript),
		InstallScript:   toScriptSteps(decoded.InstallScript),
	}
	if decoded.Git != nil {
		r.Git = &GitSource{URL: decoded.Git.URL, Branch: decoded.Git.Branch}
	}
	for _, p := range decoded.Patches {
		r.Patches = append(r.Patches, PatchEntry{
			Patch:      p.Patch,
			Images:     p.Images,
			StripLevel: p.StripLevel,
		})
	}
	if decoded.Deb != nil {
		r.Deb = &DebTarget{
			InstallScript:  toScriptSteps(decoded.Deb.InstallScript),
			PostinstScript: decoded.Deb.PostinstScript,
		}
	}
	if decoded.Rpm != nil {
		r.Rpm = &RpmTarget{InstallScript: toScriptSteps(decoded.Rpm.InstallScript)}
	}
	if decoded.Pkg != nil {
		r.Pkg = &PkgTarget{InstallScript: toScriptSteps(decoded.Pkg.InstallScript)}
	}
	return r, nil
}

// List implements Loader.
func (l *DefaultLoader) List(recipesDir string) ([]string, error) {
	entries, err := ioutil.ReadDir(recipesDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed listing recipes directory")
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(recipesDir, e.Name(), "recipe.yml")); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
