package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandResult is the captured outcome of one collaborator invocation
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Diagnostic prefers stderr and falls back to stdout, both trimmed.
func (r CommandResult) Diagnostic() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner starts a collaborator process and waits for it. A non-zero exit is
// reported through CommandResult.ExitCode; the error is reserved for
// processes that could not be started at all.
type Runner interface {
	Run(ctx context.Context, argv []string, env []string) (CommandResult, error)
}

type execRunner struct {
	dir string
}

// NewExecRunner runs commands with dir as working directory ("" keeps the
// current one).
func NewExecRunner(dir string) Runner {
	return execRunner{dir: dir}
}

func (r execRunner) Run(ctx context.Context, argv []string, env []string) (CommandResult, error) {
	if len(argv) == 0 {
		return CommandResult{}, fmt.Errorf("empty command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
