package tool

import (
	"fmt"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/workspace"
)

// lastSavedCodeKey is the session state key recording the most recently saved
// script path, picked up by execute_code when the model omits a filename.
const lastSavedCodeKey = "last_saved_code"

// saveCodeTool persists generated analysis code into the workspace output
// directory.
type saveCodeTool struct {
	ws *workspace.Workspace
}

// NewSaveCodeTool constructs the code saving tool backed by the given workspace.
func NewSaveCodeTool(ws *workspace.Workspace) Tool {
	return &saveCodeTool{ws: ws}
}

func (t *saveCodeTool) Name() string { return "save_code" }

func (t *saveCodeTool) Description() string {
	return "Save analysis code to a file in the output directory so it can be executed. Pass the complete script in 'code'."
}

func (t *saveCodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code":     map[string]any{"type": "string", "description": "Complete source code of the analysis script"},
			"filename": map[string]any{"type": "string", "description": "Target filename, defaults to " + workspace.DefaultCodeFilename},
		},
		"required": []string{"code"},
	}
}

func (t *saveCodeTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	code, _ := args["code"].(string)
	filename, _ := args["filename"].(string)

	path, err := t.ws.SaveCode(code, filename)
	if err != nil {
		return nil, err
	}

	tc.SetState(lastSavedCodeKey, path)

	return fmt.Sprintf("Code saved to %s", path), nil
}
