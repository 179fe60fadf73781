package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Oracle     OracleConfig     `yaml:"oracle"`
	SSR        SSRConfig        `yaml:"ssr"`
	Storage    StorageConfig    `yaml:"storage"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
}

type OracleConfig struct {
	Backend string        `yaml:"backend,omitempty"` // "codex", "openai" or "claude"
	Binary  string        `yaml:"binary,omitempty"`  // CLI backends only
	Model   string        `yaml:"model,omitempty"`
	Sandbox string        `yaml:"sandbox,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"` // API backends only
	BaseURL string        `yaml:"base_url,omitempty"`
	// SessionRoot overrides where session artifacts are listed from.
	SessionRoot string `yaml:"session_root,omitempty"`
}

type SSRConfig struct {
	Temperature float64 `yaml:"temperature,omitempty"`
	// OnOracleFailure selects the task-failure policy: "fail" marks the
	// task failed (default); "uniform" records a uniform-tagged result
	// and continues.
	OnOracleFailure string `yaml:"on_oracle_failure,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type EvaluationConfig struct {
	// Ceiling is the theoretical correlation maximum attainment is
	// reported against. Zero means estimate it by simulation.
	Ceiling float64 `yaml:"ceiling,omitempty"`
	Trials  int     `yaml:"trials,omitempty"` // Monte Carlo trials for the simulated ceiling
	Seed    int64   `yaml:"seed,omitempty"`
}

const (
	PolicyFail    = "fail"
	PolicyUniform = "uniform"

	DefaultCeiling = 0.9
	DefaultTrials  = 300
)

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	switch cfg.SSR.OnOracleFailure {
	case PolicyFail, PolicyUniform:
	default:
		return nil, fmt.Errorf("config: unknown on_oracle_failure policy %q", cfg.SSR.OnOracleFailure)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Oracle.Backend) == "" {
		cfg.Oracle.Backend = "codex"
	}
	cfg.Oracle.Backend = strings.ToLower(strings.TrimSpace(cfg.Oracle.Backend))
	if cfg.SSR.Temperature <= 0 {
		cfg.SSR.Temperature = 1.0
	}
	if strings.TrimSpace(cfg.SSR.OnOracleFailure) == "" {
		cfg.SSR.OnOracleFailure = PolicyFail
	}
	cfg.SSR.OnOracleFailure = strings.ToLower(strings.TrimSpace(cfg.SSR.OnOracleFailure))
	if cfg.Evaluation.Ceiling < 0 {
		cfg.Evaluation.Ceiling = DefaultCeiling
	}
	if cfg.Evaluation.Trials <= 0 {
		cfg.Evaluation.Trials = DefaultTrials
	}
}

func applyEnv(cfg *Config) {
	if strings.TrimSpace(cfg.Oracle.APIKey) != "" {
		return
	}
	switch cfg.Oracle.Backend {
	case "openai":
		if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
			cfg.Oracle.APIKey = v
		}
	case "claude":
		if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
			cfg.Oracle.APIKey = v
		} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
			cfg.Oracle.APIKey = v
		}
	}
}
