package recipe

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

const sampleRecipe = `
name: htop
version: 3.0.5
release: "1"
arch: amd64
all_images: true
build_depends:
  "": ["make", "gcc"]
source: "https://example.invalid/htop-3.0.5.tar.gz"
build_script:
  - cmd: "make"
install_script:
  - cmd: "make install"
deb:
  postinst_script: "ldconfig"
`

func writeRecipe(t *testing.T, dir, name, content string) {
	t.Helper()
	recipeDir := filepath.Join(dir, name)
	if err := os.MkdirAll(recipeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(recipeDir, "recipe.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "htop", sampleRecipe)

	loader := NewDefaultLoader()
	r, err := loader.Load(dir, "htop")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Name != "htop" || r.Version != "3.0.5" || r.Release != "1" {
		t.Fatalf("unexpected recipe: %+v", r)
	}
	if len(r.BuildScript) != 1 || r.BuildScript[0].Cmd != "make" {
		t.Fatalf("unexpected build script: %+v", r.BuildScript)
	}
	if r.Deb == nil || r.Deb.PostinstScript != "ldconfig" {
		t.Fatalf("unexpected deb block: %+v", r.Deb)
	}
}

func TestDefaultLoaderList(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "htop", sampleRecipe)
	writeRecipe(t, dir, "jq", sampleRecipe)
	if err := os.MkdirAll(filepath.Join(dir, "not-a-recipe"), 0o755); err != nil {
		t.Fatal(err)
	}

	loader := NewDefaultLoader()
	names, err := loader.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List = %v, want 2 entries", names)
	}
}

func TestDefaultLoaderMissing(t *testing.T) {
	dir := t.TempDir()
	loader := NewDefaultLoader()
	if _, err := loader.Load(dir, "nope"); err == nil {
		t.Fatal("expected error loading missing recipe")
	}
}
