package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Shell runs operator commands through a POSIX shell.
type Shell struct {
	// Path is the shell binary, "sh" when empty.
	Path string
}

// RunShell executes command and returns its complete stdout and stderr.
// A non-zero exit status is not an error: it shows up only as stderr text.
// err is set when the process could not be started.
func (s Shell) RunShell(ctx context.Context, command string) (stdout, stderr string, err error) {
	path := s.Path
	if path == "" {
		path = "sh"
	}

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-c", command)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout = strings.ToValidUTF8(outBuf.String(), "�")
	stderr = strings.ToValidUTF8(errBuf.String(), "�")

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return stdout, stderr, fmt.Errorf("failed to start %s: %w", path, runErr)
	}
	return stdout, stderr, nil
}

// formatShell lays out shell output with stderr ahead of stdout.
func formatShell(stdout, stderr string) string {
	out := ""
	if stdout != "" {
		out = "Stdout: " + fence + stdout + fence
	}
	if stderr != "" {
		out = "Stderr: " + fence + stderr + fence + "\n\n\n" + out
	}
	return out
}
