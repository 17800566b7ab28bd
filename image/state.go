package image

import (
	"time"

	"github.com/pkger-build/pkger/recipe"
)

const (
	// TagLatest is the tag used for a freshly built base image.
	TagLatest = "latest"
	// TagCached is the tag used for a second-stage, dependency-cached image.
	TagCached = "cached"
)

// State is the cached description of one built container image. The
// invariant from spec.md §3 holds: Tag == TagCached implies Deps is the
// exact set the second-stage image was built with.
type State struct {
	ID        string
	Image     string
	Tag       string
	OS        Os
	Timestamp time.Time
	Deps      map[string]struct{}
	Simple    bool
}

// NewState builds a State with a deduplicated dependency set.
func NewState(id, image, tag string, os Os, timestamp time.Time, deps []string, simple bool) State {
	set := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return State{
		ID:        id,
		Image:     image,
		Tag:       tag,
		OS:        os,
		Timestamp: timestamp,
		Deps:      set,
		Simple:    simple,
	}
}

// DepsEqual reports whether this state's dependency set is exactly the
// given set.
func (s State) DepsEqual(deps []string) bool {
	if len(deps) != len(s.Deps) {
		return false
	}
	for _, d := range deps {
		if _, ok := s.Deps[d]; !ok {
			return false
		}
	}
	return true
}

// DepsSlice returns the dependency set as an unsorted slice, for logging
// and for the on-disk encoding.
func (s State) DepsSlice() []string {
	out := make([]string, 0, len(s.Deps))
	for d := range s.Deps {
		out = append(out, d)
	}
	return out
}

// FullTag formats the full `<image>:<tag>` reference for the engine.
func (s State) FullTag() string {
	return s.Image + ":" + s.Tag
}

// recipeTargetGob is the on-disk shape of a RecipeTarget key; gob cannot
// encode the recipe.BuildTarget int type directly as a map key alias
// without registering it, so we flatten to primitives instead.
type recipeTargetGob struct {
	RecipeName string
	Image      string
	Target     int
	OSOverride string
}

func toGobKey(t recipe.RecipeTarget) recipeTargetGob {
	return recipeTargetGob{
		RecipeName: t.RecipeName,
		Image:      t.Image.Image,
		Target:     int(t.Image.Target),
		OSOverride: t.Image.OSOverride,
	}
}

func fromGobKey(g recipeTargetGob) recipe.RecipeTarget {
	return recipe.RecipeTarget{
		RecipeName: g.RecipeName,
		Image: recipe.ImageTarget{
			Image:      g.Image,
			Target:     recipe.BuildTarget(g.Target),
			OSOverride: g.OSOverride,
		},
	}
}

// stateGob is the on-disk shape of a State.
type stateGob struct {
	ID        string
	Image     string
	Tag       string
	OSName    string
	OSVersion string
	Timestamp int64
	Deps      []string
	Simple    bool
}

func toGobState(s State) stateGob {
	return stateGob{
		ID:        s.ID,
		Image:     s.Image,
		Tag:       s.Tag,
		OSName:    s.OS.Name,
		OSVersion: s.OS.Version,
		Timestamp: s.Timestamp.UnixNano(),
		Deps:      s.DepsSlice(),
		Simple:    s.Simple,
	}
}

func fromGobState(g stateGob) State {
	return NewState(g.ID, g.Image, g.Tag, Os{Name: g.OSName, Version: g.OSVersion},
		time.Unix(0, g.Timestamp), g.Deps, g.Simple)
}
