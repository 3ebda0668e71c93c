// Package config loads runtime configuration from the environment and the
// agent system prompts from YAML. Configuration problems are fatal at startup:
// Load returns a ConfigurationError instead of letting a misconfigured system
// fail halfway through a question.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/datalyze-ai/datalyze/core"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all runtime settings. Every field has an environment binding;
// flags and function options may override values after Load.
type Config struct {
	Provider string `env:"DATALYZE_PROVIDER" envDefault:"openai"`
	Model    string `env:"DATALYZE_MODEL"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	DataDir   string `env:"DATALYZE_DATA_DIR" envDefault:"data"`
	OutputDir string `env:"DATALYZE_OUTPUT_DIR" envDefault:"output"`

	MaxIterations int `env:"DATALYZE_MAX_ITERATIONS" envDefault:"10"`
	MaxToolRounds int `env:"DATALYZE_MAX_TOOL_ROUNDS" envDefault:"8"`
	ModelRetries  int `env:"DATALYZE_MODEL_RETRIES" envDefault:"3"`

	ExecTimeout  time.Duration `env:"DATALYZE_EXEC_TIMEOUT" envDefault:"60s"`
	ModelTimeout time.Duration `env:"DATALYZE_MODEL_TIMEOUT" envDefault:"120s"`
	PythonBin    string        `env:"DATALYZE_PYTHON_BIN" envDefault:"python3"`

	// SessionDB points at a SQLite file for durable sessions; empty keeps
	// sessions in memory.
	SessionDB string `env:"DATALYZE_SESSION_DB"`

	// PromptsFile overrides the embedded default prompts.
	PromptsFile string `env:"DATALYZE_PROMPTS_FILE"`

	LogLevel  string `env:"DATALYZE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DATALYZE_LOG_FORMAT" envDefault:"text"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, core.NewConfigurationError("config", "parse environment: %v", err)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModelFor(cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency. It does not verify API keys against
// the provider; that happens on the first model call.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return core.NewConfigurationError("config", "OPENAI_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return core.NewConfigurationError("config", "ANTHROPIC_API_KEY is required for provider %q", c.Provider)
		}
	default:
		return core.NewConfigurationError("config", "unknown provider %q (supported: %s, %s)", c.Provider, ProviderOpenAI, ProviderAnthropic)
	}

	if c.Model == "" {
		return core.NewConfigurationError("config", "model name must not be empty")
	}
	if c.MaxIterations <= 0 {
		return core.NewConfigurationError("config", "max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxToolRounds <= 0 {
		return core.NewConfigurationError("config", "max tool rounds must be positive, got %d", c.MaxToolRounds)
	}
	if c.ModelRetries <= 0 {
		return core.NewConfigurationError("config", "model retries must be positive, got %d", c.ModelRetries)
	}
	if c.ExecTimeout <= 0 {
		return core.NewConfigurationError("config", "exec timeout must be positive, got %s", c.ExecTimeout)
	}
	if c.ModelTimeout <= 0 {
		return core.NewConfigurationError("config", "model timeout must be positive, got %s", c.ModelTimeout)
	}
	if c.DataDir == "" || c.OutputDir == "" {
		return core.NewConfigurationError("config", "data and output directories must not be empty")
	}
	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

func defaultModelFor(provider string) string {
	if provider == ProviderAnthropic {
		return "claude-sonnet-4-20250514"
	}
	return "gpt-4o"
}
