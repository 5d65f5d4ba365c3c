package gateway

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Command describes one external process invocation.
type Command struct {
	// Name is the executable, resolved through PATH.
	Name string

	// Args are passed verbatim, without shell interpretation.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds KEY=VALUE pairs appended to the inherited environment.
	Env []string
}

// Argv returns the full argument vector including the executable name.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// CommandError is returned when a process exits non-zero or cannot be started.
type CommandError struct {
	Argv     []string
	ExitCode int // -1 when the process never started
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("command %q failed (exit %d): %s", strings.Join(e.Argv, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a CommandError whose stderr says the
// queried object does not exist. kubectl and gcloud both phrase it this way.
func IsNotFound(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, "NotFound") || strings.Contains(cmdErr.Stderr, "not found")
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// ExtraPath is prepended to PATH for every child, e.g. ~/.local/bin
	// after a user-level pip install.
	ExtraPath []string
}

// NewExecRunner creates a runner that spawns real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the command and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	name := c.Name
	if len(r.ExtraPath) > 0 {
		if resolved, err := r.lookPath(c.Name); err == nil {
			name = resolved
		}
	}

	// #nosec G204 - commands are assembled from fixed tool names and staged paths
	cmd := exec.CommandContext(ctx, name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = r.environ(c.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		res.ExitCode = -1
	}
	return res, &CommandError{
		Argv:     c.Argv(),
		ExitCode: res.ExitCode,
		Stderr:   stderr.String(),
		Err:      err,
	}
}

func (r *ExecRunner) environ(extra []string) []string {
	env := os.Environ()
	if len(r.ExtraPath) > 0 {
		path := strings.Join(append(append([]string{}, r.ExtraPath...), os.Getenv("PATH")), string(os.PathListSeparator))
		env = append(env, "PATH="+path)
	}
	return append(env, extra...)
}

func (r *ExecRunner) lookPath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	for _, dir := range r.ExtraPath {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}
