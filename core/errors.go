package core

import (
	"errors"
	"fmt"
)

// ErrNoDataLoaded is returned by the question entry points when no dataset
// has been loaded into the workspace yet.
var ErrNoDataLoaded = errors.New("no data loaded: load a dataset before asking questions")

// ConfigurationError reports invalid wiring detected at construction time
// (duplicate agent names, missing prompts, dangling handoff targets). It is
// fatal: the system refuses to start rather than fail mid-question.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
}

// NewConfigurationError creates a ConfigurationError for a component.
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing file or dataset path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("file not found: %s", e.Path) }

// UnsupportedFormatError reports a dataset extension outside the allow-list.
type UnsupportedFormatError struct {
	Extension string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (supported: %v)", e.Extension, e.Supported)
}

// InvalidInputError reports caller-correctable bad input, e.g. blank code
// passed to the code saver. The turn is not retried.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Field, e.Message)
}

// ModelCallError reports a failed model invocation after retries were
// exhausted. It aborts the current question only.
type ModelCallError struct {
	Agent    string
	Attempts int
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed for agent %s after %d attempt(s): %v", e.Agent, e.Attempts, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// ExecutionError reports a failure of externally executed analysis code.
// Output carries the captured stdout/stderr so the conversation can surface
// it to the agents, which may decide to regenerate the code.
type ExecutionError struct {
	Path   string
	Output string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed: %v", e.Path, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
