package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default execution parameters applied by ApplyDefaults.
const (
	DefaultWorkers        = 4
	DefaultMaxAttempts    = 3
	DefaultRetryBackoffMs = 500
	DefaultJudgeModel     = "gpt-4o"
	DefaultAnswerModel    = "gpt-4o-mini"

	// DefaultFailThreshold is the fraction of permanently-failed questions
	// at which a run pass finishes as failed rather than completed. Zero
	// means any permanent failure marks the run failed, which keeps it
	// eligible for continue.
	DefaultFailThreshold = 0.0
)

// BenchmarkConfig is the YAML configuration for starting a run.
type BenchmarkConfig struct {
	Provider       string         `yaml:"provider"`
	Benchmark      string         `yaml:"benchmark"`
	Dataset        string         `yaml:"dataset"`
	RunID          string         `yaml:"run_id,omitempty"`
	JudgeModel     string         `yaml:"judge_model,omitempty"`
	AnsweringModel string         `yaml:"answering_model,omitempty"`
	Workers        int            `yaml:"max_workers,omitempty"`
	MaxAttempts    int            `yaml:"max_attempts,omitempty"`
	RetryBackoffMs int            `yaml:"retry_backoff_ms,omitempty"`
	FailThreshold  *float64       `yaml:"fail_threshold,omitempty"`
	ProviderParams map[string]any `yaml:"provider_config,omitempty"`
}

// LoadBenchmarkConfig loads a benchmark config from a YAML file, applying
// defaults and validating required fields.
func LoadBenchmarkConfig(path string) (*BenchmarkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading benchmark config: %w", err)
	}

	var cfg BenchmarkConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing benchmark config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued optional fields.
func (c *BenchmarkConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoffMs <= 0 {
		c.RetryBackoffMs = DefaultRetryBackoffMs
	}
	if c.JudgeModel == "" {
		c.JudgeModel = DefaultJudgeModel
	}
	if c.AnsweringModel == "" {
		c.AnsweringModel = DefaultAnswerModel
	}
	if c.FailThreshold == nil {
		v := DefaultFailThreshold
		c.FailThreshold = &v
	}
}

// Validate checks required fields and ranges.
func (c *BenchmarkConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("benchmark config: provider is required")
	}
	if c.Benchmark == "" {
		return fmt.Errorf("benchmark config: benchmark is required")
	}
	if c.FailThreshold != nil && (*c.FailThreshold < 0 || *c.FailThreshold > 1) {
		return fmt.Errorf("benchmark config: fail_threshold must be within [0, 1], got %v", *c.FailThreshold)
	}
	return nil
}

// RunConfig converts the file-level config into the per-run settings record.
func (c *BenchmarkConfig) RunConfig() RunConfig {
	threshold := DefaultFailThreshold
	if c.FailThreshold != nil {
		threshold = *c.FailThreshold
	}
	return RunConfig{
		Workers:        c.Workers,
		MaxAttempts:    c.MaxAttempts,
		RetryBackoffMs: c.RetryBackoffMs,
		FailThreshold:  threshold,
		ProviderParams: c.ProviderParams,
	}
}
