// Package recipe defines the data model the build engine consumes:
// recipes, image targets, and the (recipe, image, build-target) cache key.
// Loading a recipe from disk is deliberately out of scope for this
// package beyond the DefaultLoader in yaml_loader.go — callers may supply
// any Loader implementation.
package recipe

import (
	"fmt"
	"strings"
)

// BuildTarget identifies the kind of artifact a job produces.
type BuildTarget int

const (
	// Deb builds a Debian package.
	Deb BuildTarget = iota
	// Rpm builds an RPM package.
	Rpm
	// Pkg builds an Arch PKGBUILD package.
	Pkg
	// Gzip builds a plain gzipped tarball.
	Gzip
)

// String renders the build target the way it appears in image
// directories, flags, and log lines.
func (t BuildTarget) String() string {
	switch t {
	case Deb:
		return "deb"
	case Rpm:
		return "rpm"
	case Pkg:
		return "pkg"
	case Gzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// ParseBuildTarget parses a build target name, case-insensitively.
func ParseBuildTarget(s string) (BuildTarget, error) {
	switch strings.ToLower(s) {
	case "deb":
		return Deb, nil
	case "rpm":
		return Rpm, nil
	case "pkg":
		return Pkg, nil
	case "gzip", "tar.gz", "tgz":
		return Gzip, nil
	default:
		return 0, fmt.Errorf("unknown build target: %q", s)
	}
}

// ImageTarget names an image directory and the package flavor to build
// from it, plus the image's configured os_override. OSOverride is carried
// into the cache key and the image listing only; the OS a build uses is
// always the one sniffed from the built image.
type ImageTarget struct {
	Image       string
	Target      BuildTarget
	OSOverride  string
}

// RecipeTarget is the cache key: a recipe name paired with an image
// target. It must be comparable so it can key a map.
type RecipeTarget struct {
	RecipeName string
	Image      ImageTarget
}

// String renders a stable, human-readable identifier for logs.
func (t RecipeTarget) String() string {
	return fmt.Sprintf("%s/%s:%s", t.RecipeName, t.Image.Image, t.Image.Target)
}

// NewRecipeTarget builds a RecipeTarget.
func NewRecipeTarget(recipeName string, image ImageTarget) RecipeTarget {
	return RecipeTarget{RecipeName: recipeName, Image: image}
}

// ScriptStep is one step of a configure/build/install script block.
type ScriptStep struct {
	Cmd    string
	Images []string // empty means "applies to every image"
}

// AppliesToImage reports whether this step should run for the given
// image name (§4.G: empty filter means unconditional).
func (s ScriptStep) AppliesToImage(image string) bool {
	if len(s.Images) == 0 {
		return true
	}
	for _, img := range s.Images {
		if img == image {
			return true
		}
	}
	return false
}

// GitSource describes a git source location.
type GitSource struct {
	URL    string
	Branch string
}

// PatchEntry is one entry of recipe.patches.
type PatchEntry struct {
	Patch       string
	Images      []string // empty means "applies to every image"
	StripLevel  int
}

// AppliesToImage reports whether this patch should be applied for the
// given image name.
func (p PatchEntry) AppliesToImage(image string) bool {
	if len(p.Images) == 0 {
		return true
	}
	for _, img := range p.Images {
		if img == image {
			return true
		}
	}
	return false
}

// DebTarget is the deb-specific recipe block.
type DebTarget struct {
	InstallScript   []ScriptStep
	PostinstScript  string
}

// RpmTarget is the rpm-specific recipe block.
type RpmTarget struct {
	InstallScript []ScriptStep
}

// PkgTarget is the pkg-specific recipe block.
type PkgTarget struct {
	InstallScript []ScriptStep
}

// Recipe is the declarative package description the engine consumes.
// Loading and validating a Recipe from YAML is out of scope for the
// engine (see Loader); the engine only reads these fields.
type Recipe struct {
	Name    string
	Version string
	Release string
	Arch    string

	AllImages bool
	Images    []string

	// BuildDepends maps an image name to the ordered list of packages to
	// install for that image; "" (the empty image name) is the default
	// list applied when no image-specific entry exists.
	BuildDepends map[string][]string

	Source string
	Git    *GitSource

	Patches      []PatchEntry
	Exclude      []string

	ConfigureScript []ScriptStep
	BuildScript     []ScriptStep
	InstallScript   []ScriptStep

	Deb *DebTarget
	Rpm *RpmTarget
	Pkg *PkgTarget
}

// ResolvedDepends returns the resolved set of build dependencies for the
// given image: the image-specific list if present, else the default
// ("") list, deduplicated.
func (r *Recipe) ResolvedDepends(image string) []string {
	list, ok := r.BuildDepends[image]
	if !ok {
		list = r.BuildDepends[""]
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(list))
	for _, dep := range list {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		out = append(out, dep)
	}
	return out
}

// PackageName returns the final artifact base name without extension.
// The deb filename uses the release-inclusive form consistent with
// rpm/pkg, per spec.md's open question resolution (see DESIGN.md).
func (r *Recipe) PackageName(target BuildTarget, arch string) string {
	switch target {
	case Gzip:
		return fmt.Sprintf("%s-%s", r.Name, r.Version)
	case Deb:
		if r.Release != "" {
			return fmt.Sprintf("%s-%s-%s.%s", r.Name, r.Version, r.Release, arch)
		}
		return fmt.Sprintf("%s-%s.%s", r.Name, r.Version, arch)
	case Pkg:
		return fmt.Sprintf("%s-%s-%s-%s", r.Name, r.Version, r.Release, arch)
	case Rpm:
		return fmt.Sprintf("%s-%s-%s.%s", r.Name, r.Version, r.Release, arch)
	default:
		return fmt.Sprintf("%s-%s", r.Name, r.Version)
	}
}
