package config

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datalyze-ai/datalyze/core"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// PromptSet holds the system prompts for the three model-driven nodes.
// Prompt text may use template variables resolved against session state,
// e.g. {{.current_dataset}}.
type PromptSet struct {
	Supervisor    string `yaml:"supervisor"`
	CodeGenerator string `yaml:"code_generator"`
	CodeExecutor  string `yaml:"code_executor"`
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() (*PromptSet, error) {
	return parsePrompts(defaultPromptsYAML, "embedded prompts")
}

// LoadPrompts reads a prompt set from a YAML file.
func LoadPrompts(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewConfigurationError("prompts", "read %s: %v", path, err)
	}
	return parsePrompts(data, path)
}

// Prompts returns the prompt set selected by the configuration: the override
// file when set, the embedded defaults otherwise.
func (c *Config) Prompts() (*PromptSet, error) {
	if c.PromptsFile != "" {
		return LoadPrompts(c.PromptsFile)
	}
	return DefaultPrompts()
}

func parsePrompts(data []byte, source string) (*PromptSet, error) {
	var ps PromptSet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, core.NewConfigurationError("prompts", "parse %s: %v", source, err)
	}
	if ps.Supervisor == "" || ps.CodeGenerator == "" || ps.CodeExecutor == "" {
		return nil, core.NewConfigurationError("prompts", "%s must define supervisor, code_generator and code_executor prompts", source)
	}
	return &ps, nil
}
