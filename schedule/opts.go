package schedule

import (
	"github.com/hashicorp/go-hclog"

	"github.com/pkger-build/pkger/configs"
	"github.com/pkger-build/pkger/recipe"
)

// BuildOpts carries the `build` command's flags: exactly one of All,
// Simple, or Images should be set, with Recipes further restricting
// which recipes get expanded. An empty BuildOpts (no All, no Simple,
// no Images, no Recipes) expands to nothing.
type BuildOpts struct {
	All     bool
	Recipes []string
	Simple  []recipe.BuildTarget
	Images  []string
}

// Task is one expanded (recipe, image target) pair ready to become a
// Job. Simple marks an auto-provisioned target: BaseImage names the
// upstream image to build FROM rather than a configured image
// directory.
type Task struct {
	Recipe    *recipe.Recipe
	Image     recipe.ImageTarget
	Simple    bool
	BaseImage string
}

// simpleBaseImages maps a build target to the upstream image pulled
// for an auto-provisioned "simple" build, when the user hasn't
// configured a custom image for that target.
var simpleBaseImages = map[recipe.BuildTarget]string{
	recipe.Deb:  "debian:stable",
	recipe.Rpm:  "fedora:latest",
	recipe.Pkg:  "archlinux:latest",
	recipe.Gzip: "debian:stable",
}

// SimpleBaseImage returns the upstream image reference an
// auto-provisioned simple target pulls from.
func SimpleBaseImage(target recipe.BuildTarget) string {
	return simpleBaseImages[target]
}

// Expand turns opts into the concrete list of tasks to run, following
// the four expansion rules: all, simple, images, and the
// recipes-only default. Missing image references are logged through
// logger and skipped rather than treated as a failure.
func Expand(opts BuildOpts, recipesDir string, loader recipe.Loader, images []configs.ImageEntry, logger hclog.Logger) ([]Task, error) {
	var names []string
	var err error

	if opts.All || len(opts.Simple) > 0 || len(opts.Images) > 0 {
		if len(opts.Recipes) > 0 {
			names = opts.Recipes
		} else {
			names, err = loader.List(recipesDir)
			if err != nil {
				return nil, err
			}
		}
	} else if len(opts.Recipes) > 0 {
		names = opts.Recipes
	} else {
		logger.Warn("no recipes to build; pass --all, --recipes, --simple or --images")
		return nil, nil
	}

	recipes := make([]*recipe.Recipe, 0, len(names))
	for _, name := range names {
		r, err := loader.Load(recipesDir, name)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}

	byImage := map[string]configs.ImageEntry{}
	for _, img := range images {
		byImage[img.Image] = img
	}

	var tasks []Task

	addConfigured := func(r *recipe.Recipe, imageName string) {
		entry, ok := byImage[imageName]
		if !ok {
			logger.Warn("image not found in configuration, skipping", "image", imageName, "recipe", r.Name)
			return
		}
		target, err := recipe.ParseBuildTarget(entry.Target)
		if err != nil {
			logger.Warn("image has invalid build target, skipping", "image", imageName, "reason", err)
			return
		}
		tasks = append(tasks, Task{Recipe: r, Image: recipe.ImageTarget{Image: imageName, Target: target, OSOverride: entry.OSOverride}})
	}

	switch {
	case len(opts.Simple) > 0:
		for _, target := range opts.Simple {
			for _, r := range recipes {
				tasks = append(tasks, Task{
					Recipe:    r,
					Image:     recipe.ImageTarget{Image: "pkger-simple-" + target.String(), Target: target},
					Simple:    true,
					BaseImage: SimpleBaseImage(target),
				})
			}
		}

	case len(opts.Images) > 0:
		for _, r := range recipes {
			if r.AllImages {
				for _, imageName := range opts.Images {
					addConfigured(r, imageName)
				}
				continue
			}
			for _, imageName := range opts.Images {
				if !containsString(r.Images, imageName) {
					logger.Warn("recipe does not target image, skipping", "recipe", r.Name, "image", imageName)
					continue
				}
				addConfigured(r, imageName)
			}
		}

	default:
		// opts.All, or the recipes-only default: both expand to every
		// recipe against its own image set.
		for _, r := range recipes {
			if r.AllImages {
				for _, img := range images {
					addConfigured(r, img.Image)
				}
				continue
			}
			if len(r.Images) == 0 {
				logger.Warn("recipe has no image targets, skipping", "recipe", r.Name)
				continue
			}
			for _, imageName := range r.Images {
				addConfigured(r, imageName)
			}
		}
	}

	return tasks, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
