package tool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datalyze-ai/datalyze/core"
)

// transferToAgentTool requests orchestration transfer to a named sub-agent.
// Targets are validated against the set of registered agent names, so a model
// cannot hand control to an agent that does not exist.
type transferToAgentTool struct {
	known map[string]struct{}
}

// NewTransferToAgentTool constructs the transfer tool for the given agent names.
func NewTransferToAgentTool(agentNames []string) Tool {
	known := make(map[string]struct{}, len(agentNames))
	for _, name := range agentNames {
		known[name] = struct{}{}
	}
	return &transferToAgentTool{known: known}
}

func (t *transferToAgentTool) Name() string { return "transfer_to_agent" }

func (t *transferToAgentTool) Description() string {
	return fmt.Sprintf(
		"Request transfer of control to another sub-agent by name. Use when another agent is better suited. Available agents: %s.",
		strings.Join(t.knownNames(), ", "),
	)
}

func (t *transferToAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{"type": "string", "description": "Target agent name"},
		},
		"required": []string{"agent"},
	}
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["agent"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'agent'")
	}
	agentName, ok := raw.(string)
	if !ok || agentName == "" {
		return nil, fmt.Errorf("field 'agent' must be non-empty string")
	}
	if _, ok := t.known[agentName]; !ok {
		return nil, NewToolError(t.Name(),
			fmt.Sprintf("unknown agent %q, available: %s", agentName, strings.Join(t.knownNames(), ", ")),
			"UNKNOWN_AGENT")
	}
	tc.TransferToAgent(agentName)
	return map[string]any{"transferred": true, "agent": agentName}, nil
}

func (t *transferToAgentTool) knownNames() []string {
	names := make([]string, 0, len(t.known))
	for name := range t.known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
