// Package executors ships the built-in executors and their
// registration. They double as the reference implementations of the
// registry contract: schema-validated inputs in, result plus metadata
// out, cooperative cancellation through ctx.
package executors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ferrovia/tasktree/internal/registry"
)

// ShellExecutor runs a command line through the system shell and
// captures its output. Required input "command" is the line to run;
// optional "dir" sets the working directory.
type ShellExecutor struct{}

func (ShellExecutor) InputSchema() registry.Schema {
	return registry.Schema{Required: []string{"command"}}
}

func (ShellExecutor) Invoke(ctx context.Context, inputs map[string]any) (*registry.Outcome, error) {
	command, ok := inputs["command"].(string)
	if !ok || command == "" {
		return nil, errors.New("input \"command\" must be a non-empty string")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if dir, ok := inputs["dir"].(string); ok {
		cmd.Dir = dir
	}
	// Own process group, so cancelling the command takes the whole
	// subprocess tree with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	stdout, stderr, runErr := run(cmd)
	meta := map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	}

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	if runErr != nil {
		if len(stderr) > 0 {
			return &registry.Outcome{Meta: meta}, fmt.Errorf("command failed: %w (stderr: %s)", runErr, string(stderr))
		}
		return &registry.Outcome{Meta: meta}, fmt.Errorf("command failed: %w", runErr)
	}

	return &registry.Outcome{
		Result: map[string]any{
			"stdout":    string(stdout),
			"stderr":    string(stderr),
			"exit_code": exitCode,
		},
		Meta: meta,
	}, nil
}

// run drains stdout and stderr concurrently before waiting, so a
// chatty subprocess can never deadlock on a full pipe buffer.
func run(cmd *exec.Cmd) (stdout, stderr []byte, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting command: %w", err)
	}

	var wg sync.WaitGroup
	var stdoutBuf, stderrBuf bytes.Buffer
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(&stdoutBuf, stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&stderrBuf, stderrPipe)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), waitErr
}
