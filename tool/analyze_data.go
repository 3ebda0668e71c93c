package tool

import (
	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/profile"
	"github.com/datalyze-ai/datalyze/workspace"
)

// analyzeDataTool profiles the active dataset and returns a readable summary
// of its shape, columns and statistics.
type analyzeDataTool struct {
	ws *workspace.Workspace
}

// NewAnalyzeDataTool constructs the dataset profiling tool backed by the
// given workspace.
func NewAnalyzeDataTool(ws *workspace.Workspace) Tool {
	return &analyzeDataTool{ws: ws}
}

func (t *analyzeDataTool) Name() string { return "analyze_data" }

func (t *analyzeDataTool) Description() string {
	return "Inspect the currently loaded dataset and return its shape, column names, types, missing values and basic statistics. Call this before writing analysis code."
}

func (t *analyzeDataTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *analyzeDataTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	path, ok := t.ws.CurrentDataset()
	if !ok {
		return nil, core.ErrNoDataLoaded
	}

	summary, err := profile.Profile(path)
	if err != nil {
		return nil, err
	}

	tc.Logger().Debug("tool.analyze_data.profiled", "path", path, "rows", summary.Rows, "columns", len(summary.Columns))

	return summary.Describe(), nil
}
