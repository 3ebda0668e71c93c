package tool

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/executor"
	"github.com/datalyze-ai/datalyze/workspace"
)

// executeCodeTool runs a previously saved analysis script and returns its
// output. Script failures come back as tool output rather than tool errors,
// so the model sees the traceback and can revise the code in a later turn.
type executeCodeTool struct {
	ws   *workspace.Workspace
	exec *executor.Executor
}

// NewExecuteCodeTool constructs the code execution tool.
func NewExecuteCodeTool(ws *workspace.Workspace, exec *executor.Executor) Tool {
	return &executeCodeTool{ws: ws, exec: exec}
}

func (t *executeCodeTool) Name() string { return "execute_code" }

func (t *executeCodeTool) Description() string {
	return "Execute a previously saved analysis script and return its output. Omit 'filename' to run the most recently saved script."
}

func (t *executeCodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filename": map[string]any{"type": "string", "description": "Script filename in the output directory, defaults to the last saved script"},
		},
	}
}

func (t *executeCodeTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	path := t.resolvePath(tc, args)

	output, err := t.exec.Run(tc.Context(), path)
	if err != nil {
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) {
			// Surface the failure to the model instead of failing the turn.
			return fmt.Sprintf("Execution of %s failed: %v\n\nOutput:\n%s", path, execErr.Err, execErr.Output), nil
		}
		return nil, err
	}

	if output == "" {
		return fmt.Sprintf("Script %s completed with no output.", path), nil
	}
	return output, nil
}

func (t *executeCodeTool) resolvePath(tc *core.ToolContext, args map[string]any) string {
	if filename, ok := args["filename"].(string); ok && filename != "" {
		return filepath.Join(t.ws.OutputDir(), filepath.Base(filename))
	}
	if saved, ok := tc.GetState(lastSavedCodeKey); ok {
		if path, ok := saved.(string); ok && path != "" {
			return path
		}
	}
	return filepath.Join(t.ws.OutputDir(), workspace.DefaultCodeFilename)
}
