package recipe

// Loader loads named recipes from a recipes directory. Recipe loading and
// YAML parsing are explicitly out of scope for the build engine (spec.md
// §1); this interface is the contract the engine depends on. DefaultLoader
// is a minimal concrete implementation good enough to drive the
// end-to-end scenarios in spec.md §8 — it performs no dependency
// resolution (a documented non-goal).
type Loader interface {
	// Load returns the named recipe from recipesDir.
	Load(recipesDir, name string) (*Recipe, error)
	// List returns the names of every recipe found in recipesDir.
	List(recipesDir string) ([]string, error)
}
