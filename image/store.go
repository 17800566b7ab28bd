package image

import (
	"bytes"
	"encoding/gob"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/pkger-build/pkger/recipe"
)

// ErrStateCorrupt is returned by Load when the state file exists but
// cannot be decoded; callers may choose to proceed with an empty store
// (spec.md §7: "logged; engine proceeds with an empty ImagesState").
type ErrStateCorrupt struct {
	Path string
	Err  error
}

func (e *ErrStateCorrupt) Error() string {
	return "image state file corrupt: " + e.Path + ": " + e.Err.Error()
}

func (e *ErrStateCorrupt) Unwrap() error { return e.Err }

// Store is the persistent RecipeTarget -> State cache described in
// spec.md §4.C, plus the file path it's backed by and a dirty flag.
// All access goes through a single reader/writer lock, matching the
// single-writer/multi-reader model in spec.md §5 — writers only hold the
// lock across the map update, never across engine I/O.
type Store struct {
	mu     sync.RWMutex
	path   string
	states map[recipe.RecipeTarget]State
	dirty  bool
}

// New returns an empty store backed by path, with dirty=false: the
// starting point a caller resets to after an ErrStateCorrupt.
func New(path string) *Store {
	return &Store{path: path, states: map[recipe.RecipeTarget]State{}}
}

// Load reads the state file at path. A missing file is not an error: it
// returns an empty, non-dirty store. A present-but-unreadable file
// returns ErrStateCorrupt.
func Load(path string) (*Store, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{path: path, states: map[recipe.RecipeTarget]State{}}, nil
		}
		return nil, errors.Wrapf(err, "failed reading image state file %q", path)
	}

	decoded := map[recipeTargetGob]stateGob{}
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&decoded); err != nil {
		return nil, &ErrStateCorrupt{Path: path, Err: err}
	}

	states := make(map[recipe.RecipeTarget]State, len(decoded))
	for k, v := range decoded {
		states[fromGobKey(k)] = fromGobState(v)
	}
	return &Store{path: path, states: states}, nil
}

// Get returns the cached state for target, if any.
func (s *Store) Get(target recipe.RecipeTarget) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[target]
	return state, ok
}

// Update inserts or replaces the state for target. Two concurrent Update
// calls for the same target are last-writer-wins; neither is lost
// mid-map, since the whole replace happens while the write lock is held.
func (s *Store) Update(target recipe.RecipeTarget, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[target] = state
	s.dirty = true
}

// Clear empties the map.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = map[recipe.RecipeTarget]State{}
	s.dirty = true
}

// HasChanged reports the dirty flag.
func (s *Store) HasChanged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Save writes the store atomically (temp file + rename) iff dirty, and
// clears the dirty flag on success. It is a no-op when nothing changed.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	encoded := make(map[recipeTargetGob]stateGob, len(s.states))
	for k, v := range s.states {
		encoded[toGobKey(k)] = toGobState(v)
	}

	buf := &bytes.Buffer{}
	if err := gob.NewEncoder(buf).Encode(encoded); err != nil {
		return errors.Wrap(err, "failed encoding image state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed creating image state directory")
	}

	tmp, err := ioutil.TempFile(dir, ".pkger-state-*")
	if err != nil {
		return errors.Wrap(err, "failed creating temp state file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed writing temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed closing temp state file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed renaming temp state file into place")
	}

	s.dirty = false
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Entry pairs a cache key with its state, for enumeration by `list images`.
type Entry struct {
	Target recipe.RecipeTarget
	State  State
}

// All returns every entry currently in the store, in no particular order.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.states))
	for k, v := range s.states {
		out = append(out, Entry{Target: k, State: v})
	}
	return out
}
