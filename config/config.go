// Package config loads the workflow's environment tunables (spec §6) from a
// YAML file with environment-variable overrides, matching the teacher's
// convention of keeping runtime tunables in a small typed struct rather than
// scattering os.Getenv calls through the codebase.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the process-wide tunables named in spec §6 Environment.
type Config struct {
	MaxTaskSteps    int    `yaml:"max_task_steps"`
	MaxRetryCount   int    `yaml:"max_retry_count"`
	ToolTimeout     int    `yaml:"tool_timeout_seconds"`
	MaxContextTokens int   `yaml:"max_context_tokens"`
	CheckpointStorePath string `yaml:"checkpoint_store_path"`

	// MaxConcurrentToolCalls carries the MAX_CONCURRENT_TOOL_CALLS tunable
	// (zero means unlimited). Load reads it, but nothing in this module
	// applies it: the Executor's only throttle is an optional rate.Limiter
	// set with executor.WithRateLimiter, and cmd/planexecd installs none.
	MaxConcurrentToolCalls int `yaml:"max_concurrent_tool_calls"`

	TaskStateTTLSeconds int `yaml:"task_state_ttl_seconds"`
}

// Default returns the tunables named in spec §6 with their documented
// defaults.
func Default() Config {
	return Config{
		MaxTaskSteps:           20,
		MaxRetryCount:          3,
		ToolTimeout:            60,
		MaxContextTokens:       8000,
		CheckpointStorePath:    "./data/checkpoints",
		MaxConcurrentToolCalls: 0,
		TaskStateTTLSeconds:    3600,
	}
}

// Load reads path (if non-empty and present) as YAML over the defaults, then
// applies PLANEXEC_* environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	intOverride(&cfg.MaxTaskSteps, "PLANEXEC_MAX_TASK_STEPS")
	intOverride(&cfg.MaxRetryCount, "PLANEXEC_MAX_RETRY_COUNT")
	intOverride(&cfg.ToolTimeout, "PLANEXEC_TOOL_TIMEOUT")
	intOverride(&cfg.MaxContextTokens, "PLANEXEC_MAX_CONTEXT_TOKENS")
	intOverride(&cfg.MaxConcurrentToolCalls, "PLANEXEC_MAX_CONCURRENT_TOOL_CALLS")
	intOverride(&cfg.TaskStateTTLSeconds, "PLANEXEC_TASK_STATE_TTL_SECONDS")
	if v := os.Getenv("PLANEXEC_CHECKPOINT_STORE_PATH"); v != "" {
		cfg.CheckpointStorePath = v
	}
}

func intOverride(field *int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*field = n
	}
}
