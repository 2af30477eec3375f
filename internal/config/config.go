// Package config is the static, layered configuration record consumed by
// the agent loop, the usage tracker, and the REPL sandbox. It is a passive
// record: no methods beyond field access, validation, and model selection
// by depth.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full set of static knobs the engine reads at agent-loop
// construction time.
type Config struct {
	PrimaryAgent        string  `yaml:"primary_agent"`
	SubAgent            string  `yaml:"sub_agent"`
	MaxDepth            int     `yaml:"max_depth"`
	MaxCallsPerSubagent int     `yaml:"max_calls_per_subagent"`
	TruncateLen         int     `yaml:"truncate_len"`
	MaxMoneySpent       float64 `yaml:"max_money_spent"`
	MaxCompletionTokens int64   `yaml:"max_completion_tokens"`
	MaxPromptTokens     int64   `yaml:"max_prompt_tokens"`

	// APIKey and BaseURL configure the LLM transport. They are not part of
	// the YAML file on purpose (secrets); they are read from the
	// environment by Load.
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"-"`
}

// Defaults returns the built-in defaults.
func Defaults() Config {
	return Config{
		PrimaryAgent:        "z-ai/glm-5",
		SubAgent:            "minimax/minimax-m2.5",
		MaxDepth:            3,
		MaxCallsPerSubagent: 20,
		TruncateLen:         2000,
		MaxMoneySpent:       1.0,
		MaxCompletionTokens: 50000,
		MaxPromptTokens:     200000,
		BaseURL:             "https://openrouter.ai/api/v1",
	}
}

// Load builds a Config by merging, in order: built-in defaults, an optional
// YAML override file at path (skipped silently if path is empty or the
// file does not exist), then environment-variable overrides for the
// transport credentials and the two model IDs. The result is validated
// before being returned.
func Load(path string) (Config, error) {
	// A .env file in the working directory is an ergonomic, non-fatal
	// convenience for local development; production deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if v := os.Getenv("RLM_MODEL_API_KEY"); v != "" {
		cfg.APIKey = v
	} else if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("RLM_MODEL_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("RLM_PRIMARY_AGENT"); v != "" {
		cfg.PrimaryAgent = v
	}
	if v := os.Getenv("RLM_SUB_AGENT"); v != "" {
		cfg.SubAgent = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects negative numeric bounds, a call limit or truncation
// length that is not positive, and empty model IDs. It does
// not check APIKey — a missing key is a fatal initialization error
// surfaced separately by the LLM client constructor.
func (c Config) Validate() error {
	if c.PrimaryAgent == "" {
		return fmt.Errorf("config: primary_agent must not be empty")
	}
	if c.SubAgent == "" {
		return fmt.Errorf("config: sub_agent must not be empty")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("config: max_depth must be non-negative")
	}
	if c.MaxCallsPerSubagent <= 0 {
		return fmt.Errorf("config: max_calls_per_subagent must be positive")
	}
	if c.TruncateLen <= 0 {
		return fmt.Errorf("config: truncate_len must be positive")
	}
	if c.MaxMoneySpent < 0 {
		return fmt.Errorf("config: max_money_spent must be non-negative")
	}
	if c.MaxCompletionTokens < 0 {
		return fmt.Errorf("config: max_completion_tokens must be non-negative")
	}
	if c.MaxPromptTokens < 0 {
		return fmt.Errorf("config: max_prompt_tokens must be non-negative")
	}
	return nil
}

// ModelFor returns the model ID the loop should use at the given recursion
// depth: the primary agent at the root, the sub-agent for every descendant.
func (c Config) ModelFor(depth int) string {
	if depth == 0 {
		return c.PrimaryAgent
	}
	return c.SubAgent
}
