package image

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkger-build/pkger/recipe"
)

func writeGarbage(path string) error {
	return ioutil.WriteFile(path, []byte("not a gob stream"), 0o644)
}

func testTarget() recipe.RecipeTarget {
	return recipe.NewRecipeTarget("htop", recipe.ImageTarget{Image: "ubuntu:20.04", Target: recipe.Deb})
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "state.gob"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.HasChanged() {
		t.Fatal("freshly loaded missing store should not be dirty")
	}
	if _, ok := s.Get(testTarget()); ok {
		t.Fatal("expected no cached state")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.gob")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	target := testTarget()
	state := NewState("abc123", "ubuntu:20.04", TagLatest, Os{Name: "ubuntu", Version: "20.04"}, time.Now(), []string{"make", "gcc"}, false)
	s.Update(target, state)

	if !s.HasChanged() {
		t.Fatal("expected store to be dirty after Update")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.HasChanged() {
		t.Fatal("expected store to be clean after Save")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := reloaded.Get(target)
	if !ok {
		t.Fatal("expected reloaded state to be present")
	}
	if got.ID != "abc123" || got.Tag != TagLatest {
		t.Fatalf("reloaded state mismatch: %+v", got)
	}
	if !got.DepsEqual([]string{"gcc", "make"}) {
		t.Fatalf("reloaded deps mismatch: %v", got.DepsSlice())
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.gob")
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error loading corrupt state file")
	} else if _, ok := err.(*ErrStateCorrupt); !ok {
		t.Fatalf("expected *ErrStateCorrupt, got %T: %v", err, err)
	}
}
