package container

// Output is the result of running one exec invocation inside a container.
type Output struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
}

// LastStderr returns the last non-empty stderr line, used in
// ExecNonZero error messages.
func (o Output) LastStderr() string {
	for i := len(o.Stderr) - 1; i >= 0; i-- {
		if o.Stderr[i] != "" {
			return o.Stderr[i]
		}
	}
	return ""
}

// ExecSpec is a fluent builder for one exec invocation (spec.md §4.B).
// It is a plain struct with With* methods, following the same fluent,
// logger-free builder idiom as defaultBuild in the teacher's
// pkg/build/rootfs.go — no third-party options library in the retrieval
// pack models "build one shell exec invocation" any better than this.
type ExecSpec struct {
	cmd             string
	shell           string
	workingDir      string
	user            string
	env             []string
	tty             bool
	attachStdout    bool
	attachStderr    bool
	privileged      bool
}

// NewExecSpec returns an ExecSpec with spec.md §4.B's defaults: shell
// "/bin/sh", stdout/stderr attached, everything else off/empty.
func NewExecSpec(cmd string) *ExecSpec {
	return &ExecSpec{
		cmd:          cmd,
		shell:        "/bin/sh",
		attachStdout: true,
		attachStderr: true,
	}
}

// WithShell overrides the shell binary.
func (e *ExecSpec) WithShell(shell string) *ExecSpec {
	e.shell = shell
	return e
}

// WithWorkingDir sets the exec's working directory.
func (e *ExecSpec) WithWorkingDir(dir string) *ExecSpec {
	e.workingDir = dir
	return e
}

// WithUser sets the exec's user.
func (e *ExecSpec) WithUser(user string) *ExecSpec {
	e.user = user
	return e
}

// WithEnv sets the exec's environment.
func (e *ExecSpec) WithEnv(env []string) *ExecSpec {
	e.env = env
	return e
}

// WithTTY toggles TTY allocation.
func (e *ExecSpec) WithTTY(tty bool) *ExecSpec {
	e.tty = tty
	return e
}

// WithAttachStdout toggles stdout attachment.
func (e *ExecSpec) WithAttachStdout(attach bool) *ExecSpec {
	e.attachStdout = attach
	return e
}

// WithAttachStderr toggles stderr attachment.
func (e *ExecSpec) WithAttachStderr(attach bool) *ExecSpec {
	e.attachStderr = attach
	return e
}

// WithPrivileged toggles privileged execution.
func (e *ExecSpec) WithPrivileged(privileged bool) *ExecSpec {
	e.privileged = privileged
	return e
}

// Cmd returns the finalized `[shell, "-c", cmd]` argv the engine consumes.
func (e *ExecSpec) Cmd() []string {
	return []string{e.shell, "-c", e.cmd}
}

// WorkingDir returns the configured working directory, "" if unset.
func (e *ExecSpec) WorkingDir() string { return e.workingDir }

// User returns the configured user, "" if unset.
func (e *ExecSpec) User() string { return e.user }

// Env returns the configured environment.
func (e *ExecSpec) Env() []string { return e.env }

// TTY reports whether a TTY was requested.
func (e *ExecSpec) TTY() bool { return e.tty }

// AttachStdout reports whether stdout is attached.
func (e *ExecSpec) AttachStdout() bool { return e.attachStdout }

// AttachStderr reports whether stderr is attached.
func (e *ExecSpec) AttachStderr() bool { return e.attachStderr }

// Privileged reports whether the exec runs privileged.
func (e *ExecSpec) Privileged() bool { return e.privileged }

// RawCmd returns the unwrapped command string, e.g. for display/logging.
func (e *ExecSpec) RawCmd() string { return e.cmd }
