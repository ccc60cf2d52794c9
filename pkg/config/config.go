// Package config loads vuescan settings from a YAML file and VUESCAN_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/praetorian-inc/vuescan/pkg/logging"
	"github.com/praetorian-inc/vuescan/pkg/types"
)

// Config is the complete vuescan configuration.
type Config struct {
	Budget BudgetConfig `koanf:"budget"`
	Engine EngineConfig `koanf:"engine"`
	Log    LogConfig    `koanf:"log"`
	Rules  RulesConfig  `koanf:"rules"`
}

// BudgetConfig bounds per-file work.
type BudgetConfig struct {
	PriorityThreshold         int    `koanf:"priority_threshold"`
	MaxRulesPerFile           int    `koanf:"max_rules_per_file"`           // <= 0 is unlimited
	MaxVulnerabilitiesPerFile int    `koanf:"max_vulnerabilities_per_file"` // <= 0 is unlimited
	Workers                   string `koanf:"workers"`                      // "auto" or a positive integer
}

// EngineConfig controls matching behavior.
type EngineConfig struct {
	Parallel         bool          `koanf:"parallel"`
	PoolSize         int           `koanf:"pool_size"` // <= 0 is max(1, NumCPU-1)
	BatchTimeout     time.Duration `koanf:"batch_timeout"`
	RegexTimeout     time.Duration `koanf:"regex_timeout"`
	OptimizePatterns bool          `koanf:"optimize_patterns"`
	Dedupe           bool          `koanf:"dedupe"`
	MinConfidence    string        `koanf:"min_confidence"`
	Suppressions     []string      `koanf:"suppressions"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RulesConfig selects the rule set.
type RulesConfig struct {
	Path    string   `koanf:"path"` // file or directory; empty uses the builtin rules
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	b := types.DefaultBudget()
	return Config{
		Budget: BudgetConfig{
			PriorityThreshold:         b.PriorityThreshold,
			MaxRulesPerFile:           b.MaxRulesPerFile,
			MaxVulnerabilitiesPerFile: b.MaxVulnerabilitiesPerFile,
			Workers:                   b.WorkerCount.String(),
		},
		Engine: EngineConfig{
			BatchTimeout: 30 * time.Second,
			RegexTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Budget.PriorityThreshold < 0 {
		return fmt.Errorf("budget.priority_threshold must not be negative, got %d", c.Budget.PriorityThreshold)
	}
	if _, err := types.ParseWorkerCount(c.Budget.Workers); err != nil {
		return fmt.Errorf("budget.workers: %w", err)
	}
	if c.Engine.BatchTimeout < 0 {
		return fmt.Errorf("engine.batch_timeout must not be negative, got %s", c.Engine.BatchTimeout)
	}
	if c.Engine.RegexTimeout < 0 {
		return fmt.Errorf("engine.regex_timeout must not be negative, got %s", c.Engine.RegexTimeout)
	}
	if c.Engine.MinConfidence != "" {
		if _, err := types.ParseConfidence(c.Engine.MinConfidence); err != nil {
			return fmt.Errorf("engine.min_confidence: %w", err)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatJSON, logging.FormatConsole, c.Log.Format)
	}
	return nil
}

// ToBudget converts the budget section. Call Validate first.
func (c *Config) ToBudget() (types.Budget, error) {
	workers, err := types.ParseWorkerCount(c.Budget.Workers)
	if err != nil {
		return types.Budget{}, fmt.Errorf("budget.workers: %w", err)
	}
	return types.Budget{
		PriorityThreshold:         c.Budget.PriorityThreshold,
		MaxRulesPerFile:           c.Budget.MaxRulesPerFile,
		MaxVulnerabilitiesPerFile: c.Budget.MaxVulnerabilitiesPerFile,
		WorkerCount:               workers,
	}, nil
}

// MinConfidence returns the parsed minimum confidence, or "" for none.
func (c *Config) MinConfidence() types.Confidence {
	conf, err := types.ParseConfidence(c.Engine.MinConfidence)
	if err != nil {
		return ""
	}
	return conf
}
