package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/log"
	"github.com/mattjoyce/grhooks/internal/metrics"
	"github.com/mattjoyce/grhooks/internal/render"
)

const (
	// maxStderrBytes caps the amount of stderr captured from a command.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second

	scriptMode = 0o755
)

// DefaultShell runs inline commands and scripts when a webhook sets none.
var DefaultShell = []string{"sh", "-c"}

// ErrNoCommand is returned for definitions with neither command nor script.
var ErrNoCommand = errors.New("no command or script provided")

// ExecError describes a command that ran but did not succeed.
type ExecError struct {
	Target   string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

func (e *ExecError) Error() string {
	status := fmt.Sprintf("exit status %d", e.ExitCode)
	if e.TimedOut {
		status = "timed out"
	}
	return fmt.Sprintf("command failed (%s, %s):\nSTDERR: %s\nSTDOUT: %s", status, e.Target, e.Stderr, e.Stdout)
}

// Executor runs webhook commands.
type Executor struct {
	logger         *slog.Logger
	defaultTimeout time.Duration
	gracePeriod    time.Duration
	tempDir        string
}

// Option configures an Executor.
type Option func(e *Executor)

// WithLogger sets the logger for the Executor.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithDefaultTimeout sets the timeout for webhooks that do not set their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.defaultTimeout = d
	}
}

// WithGracePeriod overrides the wait between SIGTERM and SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Executor) {
		e.gracePeriod = d
	}
}

// WithTempDir sets where rendered scripts are written. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(e *Executor) {
		e.tempDir = dir
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		logger:      log.WithComponent("dispatch"),
		gracePeriod: terminationGracePeriod,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs hook's script or command with ns bound for rendering and
// returns the command's trimmed stdout. A script takes precedence over an
// inline command.
func (e *Executor) Execute(ctx context.Context, hook config.Webhook, ns render.Namespace) (string, error) {
	logger := e.logger.With("path", hook.Path)
	start := time.Now()

	var (
		out string
		err error
	)
	switch {
	case hook.Script != "":
		out, err = e.runScript(ctx, hook, ns, logger)
	case hook.Command != "":
		out, err = e.runCommand(ctx, hook, ns, logger)
	default:
		return "", ErrNoCommand
	}

	metrics.ObserveCommand(start, err)
	return out, err
}

func (e *Executor) runCommand(ctx context.Context, hook config.Webhook, ns render.Namespace, logger *slog.Logger) (string, error) {
	rendered, err := ns.Render(strings.TrimSpace(hook.Command))
	if err != nil {
		return "", fmt.Errorf("failed to render command: %w", err)
	}
	logger.Debug("executing command", "command", rendered)
	return e.run(ctx, hook, rendered, rendered, logger)
}

func (e *Executor) runScript(ctx context.Context, hook config.Webhook, ns render.Namespace, logger *slog.Logger) (string, error) {
	content, err := os.ReadFile(hook.Script)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}

	tmp, err := os.CreateTemp(e.tempDir, "grhooks-*.sh")
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove rendered script", "file", path, "error", err)
		}
	}()

	rendered, err := ns.Render(strings.TrimSpace(string(content)))
	if err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to render script %s: %w", hook.Script, err)
	}
	if _, err := tmp.WriteString(rendered); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	if err := os.Chmod(path, scriptMode); err != nil {
		return "", fmt.Errorf("failed to make script executable: %w", err)
	}

	logger.Debug("executing rendered script", "script", hook.Script, "file", path)
	return e.run(ctx, hook, path, "script: "+hook.Script, logger)
}

// run executes arg under the webhook's shell and enforces the timeout.
func (e *Executor) run(ctx context.Context, hook config.Webhook, arg, target string, logger *slog.Logger) (string, error) {
	shell := hook.Shell
	if len(shell) == 0 {
		shell = DefaultShell
	}
	args := append(append([]string{}, shell[1:]...), arg)

	// Termination is managed here rather than with CommandContext so the
	// grace period applies.
	cmd := exec.Command(shell[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = e.gracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", shell[0], err)
	}
	metrics.CommandsInFlight.Inc()
	defer metrics.CommandsInFlight.Dec()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var expired <-chan time.Time
	if timeout := e.timeoutFor(hook); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var err error
	timedOut := false
	select {
	case err = <-waitErr:
	case <-expired:
		timedOut = true
		logger.Warn("command timed out, sending SIGTERM", "target", target)
		err = e.terminate(cmd, waitErr, logger)
	case <-ctx.Done():
		timedOut = true
		logger.Warn("command cancelled, sending SIGTERM", "target", target, "error", ctx.Err())
		err = e.terminate(cmd, waitErr, logger)
	}

	// A background child that inherited stdout keeps the pipes open after the
	// shell exits. Wait gives up after WaitDelay; the exit status still counts.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		logger.Warn("command left processes holding its output", "target", target)
		if cmd.ProcessState.Success() {
			err = nil
		}
	}

	if err == nil && !timedOut {
		return strings.TrimSpace(stdout.String()), nil
	}

	execErr := &ExecError{
		Target:   target,
		ExitCode: -1,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   truncateStderr(stderr.String()),
		TimedOut: timedOut,
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		execErr.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
		execErr.ExitCode = cmd.ProcessState.ExitCode()
	case err != nil && !timedOut:
		return "", fmt.Errorf("wait for process: %w", err)
	}
	logger.Warn("command failed", "target", target, "exit_code", execErr.ExitCode, "timed_out", timedOut)
	return "", execErr
}

// terminate sends SIGTERM to the process group, then SIGKILL once the grace
// period expires, and returns the process's wait error.
func (e *Executor) terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) error {
	pgid := -cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(e.gracePeriod)
	defer grace.Stop()

	select {
	case err := <-waitErr:
		logger.Info("command exited after SIGTERM")
		return err
	case <-grace.C:
		logger.Warn("command did not exit after SIGTERM, sending SIGKILL")
		if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		return <-waitErr
	}
}

func (e *Executor) timeoutFor(hook config.Webhook) time.Duration {
	if hook.Timeout > 0 {
		return hook.Timeout.Std()
	}
	return e.defaultTimeout
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
