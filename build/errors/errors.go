// Package errors defines the typed error kinds of spec.md §7, as plain
// Go structs implementing error, the same idiom as the teacher's
// pkg/build/errors package (ErrorIsDirectory, CommandOutOfScopeError).
package errors

import "fmt"

// EngineUnavailable is returned when the container engine connection
// cannot be established or used.
type EngineUnavailable struct {
	Reason error
}

func (e *EngineUnavailable) Error() string {
	return fmt.Sprintf("container engine unavailable: %v", e.Reason)
}
func (e *EngineUnavailable) Unwrap() error { return e.Reason }

// SpawnFailed is returned when a container could not be created/started.
type SpawnFailed struct {
	Image  string
	Reason error
}

func (e *SpawnFailed) Error() string {
	return fmt.Sprintf("failed spawning container from %q: %v", e.Image, e.Reason)
}
func (e *SpawnFailed) Unwrap() error { return e.Reason }

// EngineStreamEnded is returned when an engine event stream terminates
// unexpectedly.
type EngineStreamEnded struct {
	Op string
}

func (e *EngineStreamEnded) Error() string {
	return fmt.Sprintf("%s: engine stream ended unexpectedly", e.Op)
}

// ImageBuildFailed carries the error message the engine reported for a
// failed image build.
type ImageBuildFailed struct {
	Message string
}

func (e *ImageBuildFailed) Error() string {
	return fmt.Sprintf("image build failed: %s", e.Message)
}

// ImageBuildIncomplete is returned when the build event stream ends
// without ever producing a digest.
type ImageBuildIncomplete struct {
	Image string
}

func (e *ImageBuildIncomplete) Error() string {
	return fmt.Sprintf("image build for %q ended before an image id was received", e.Image)
}

// ExecNonZero is returned by CheckedExec when a command exits non-zero.
type ExecNonZero struct {
	Cmd        string
	ExitCode   int
	LastStderr string
}

func (e *ExecNonZero) Error() string {
	return fmt.Sprintf("command %q exited with code %d: %s", e.Cmd, e.ExitCode, e.LastStderr)
}

// ScriptFailed is returned when a configure/build/install script step
// fails.
type ScriptFailed struct {
	Block     string
	StepIndex int
	Reason    error
}

func (e *ScriptFailed) Error() string {
	return fmt.Sprintf("%s script failed at step %d: %v", e.Block, e.StepIndex, e.Reason)
}
func (e *ScriptFailed) Unwrap() error { return e.Reason }

// MissingImageRef is a warned-not-fatal condition: a recipe or CLI
// invocation names an image that isn't configured.
type MissingImageRef struct {
	Image string
}

func (e *MissingImageRef) Error() string {
	return fmt.Sprintf("no configuration found for image %q", e.Image)
}

// SourceFetchFailed is returned when acquiring recipe sources fails.
type SourceFetchFailed struct {
	Source string
	Reason error
}

func (e *SourceFetchFailed) Error() string {
	return fmt.Sprintf("failed fetching source %q: %v", e.Source, e.Reason)
}
func (e *SourceFetchFailed) Unwrap() error { return e.Reason }

// ArchiveExtractFailed is returned when archive expansion fails.
type ArchiveExtractFailed struct {
	Archive string
	Reason  error
}

func (e *ArchiveExtractFailed) Error() string {
	return fmt.Sprintf("failed extracting archive %q: %v", e.Archive, e.Reason)
}
func (e *ArchiveExtractFailed) Unwrap() error { return e.Reason }

// SigningFailed is returned when package signing fails.
type SigningFailed struct {
	Package string
	Reason  error
}

func (e *SigningFailed) Error() string {
	return fmt.Sprintf("failed signing package %q: %v", e.Package, e.Reason)
}
func (e *SigningFailed) Unwrap() error { return e.Reason }

// PackageBuildFailed is returned when assembling the final package
// artifact fails, for any build target.
type PackageBuildFailed struct {
	Target string
	Reason error
}

func (e *PackageBuildFailed) Error() string {
	return fmt.Sprintf("%s package build failed: %v", e.Target, e.Reason)
}
func (e *PackageBuildFailed) Unwrap() error { return e.Reason }

// DownloadFailed is returned when downloading the finished artifact from
// the container fails.
type DownloadFailed struct {
	Path   string
	Reason error
}

func (e *DownloadFailed) Error() string {
	return fmt.Sprintf("failed downloading %q from container: %v", e.Path, e.Reason)
}
func (e *DownloadFailed) Unwrap() error { return e.Reason }

// Cancelled is synthesized by the scheduler when the is_running flag
// flips to false while a job is still outstanding.
type Cancelled struct {
	Reason string
}

func (e *Cancelled) Error() string {
	if e.Reason == "" {
		return "job cancelled by ctrl-c signal"
	}
	return e.Reason
}

// RecipeLoad wraps a recipe loading failure.
type RecipeLoad struct {
	Recipe string
	Reason error
}

func (e *RecipeLoad) Error() string {
	return fmt.Sprintf("failed loading recipe %q: %v", e.Recipe, e.Reason)
}
func (e *RecipeLoad) Unwrap() error { return e.Reason }

// ImageRead wraps an image directory read failure.
type ImageRead struct {
	Image  string
	Reason error
}

func (e *ImageRead) Error() string {
	return fmt.Sprintf("failed reading image %q: %v", e.Image, e.Reason)
}
func (e *ImageRead) Unwrap() error { return e.Reason }
