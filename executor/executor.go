// Package executor runs generated analysis scripts in a subprocess. Scripts
// never run inside the host process: each execution spawns the configured
// interpreter with a deadline and captures combined stdout/stderr, so a broken
// or runaway script cannot take the orchestrator down with it.
package executor

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/logging"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 60 * time.Second

// Executor runs scripts with a fixed interpreter and timeout. The zero value
// is not usable; construct with New.
type Executor struct {
	interpreter string
	timeout     time.Duration
	workDir     string
	logger      logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithInterpreter overrides the interpreter binary (default "python3").
func WithInterpreter(bin string) Option {
	return func(e *Executor) { e.interpreter = bin }
}

// WithTimeout overrides the per-execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithWorkDir sets the working directory scripts run in.
func WithWorkDir(dir string) Option {
	return func(e *Executor) { e.workDir = dir }
}

// WithLogger sets the logger used for execution events.
func WithLogger(logger logging.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an Executor with default interpreter "python3" and
// DefaultTimeout.
func New(opts ...Option) *Executor {
	e := &Executor{
		interpreter: "python3",
		timeout:     DefaultTimeout,
		logger:      logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Interpreter returns the configured interpreter binary.
func (e *Executor) Interpreter() string { return e.interpreter }

// Run executes the script at path and returns its combined output. A missing
// script yields a NotFoundError. A non-zero exit, a timeout or a start failure
// yields an ExecutionError carrying whatever output the script produced, so
// callers can surface it to the conversation instead of aborting the run.
func (e *Executor) Run(ctx context.Context, scriptPath string) (string, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return "", &core.NotFoundError{Path: scriptPath}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.interpreter, scriptPath)
	cmd.Dir = e.workDir

	start := time.Now()
	raw, err := cmd.CombinedOutput()
	output := strings.TrimRight(string(raw), "\n")

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = runCtx.Err()
		}
		e.logger.Warn("executor.run.failed", "script", scriptPath, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return output, &core.ExecutionError{Path: scriptPath, Output: output, Err: err}
	}

	e.logger.Info("executor.run.success", "script", scriptPath, "duration_ms", time.Since(start).Milliseconds())

	return output, nil
}
