package configs

import (
	"os"
	"path/filepath"
)

// StateFileName is the fixed filename ImageStateStore persists to,
// per spec.md §6 ("a fixed filename" under the user's cache directory).
const StateFileName = "pkger-images-state.gob"

// StatePath resolves the image state file path: the user's cache
// directory under a "pkger" subdirectory, falling back to the current
// directory when the OS cache directory can't be resolved.
func StatePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return StateFileName
	}
	return filepath.Join(dir, "pkger", StateFileName)
}
