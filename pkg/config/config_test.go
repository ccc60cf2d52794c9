package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vuescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0, cfg.Budget.PriorityThreshold)
	assert.Equal(t, 200, cfg.Budget.MaxRulesPerFile)
	assert.Equal(t, 100, cfg.Budget.MaxVulnerabilitiesPerFile)
	assert.Equal(t, "auto", cfg.Budget.Workers)
	assert.Equal(t, 30*time.Second, cfg.Engine.BatchTimeout)
	assert.Equal(t, 5*time.Second, cfg.Engine.RegexTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	b, err := cfg.ToBudget()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultBudget(), b)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
budget:
  priority_threshold: 3
  max_rules_per_file: 50
  workers: 4
engine:
  parallel: true
  regex_timeout: 250ms
  min_confidence: medium
  suppressions:
    - App.vue
    - "Login.vue:12"
log:
  level: debug
  format: json
rules:
  path: ./rules
  exclude: [vue-demo-.*]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Budget.PriorityThreshold)
	assert.Equal(t, 50, cfg.Budget.MaxRulesPerFile)
	assert.Equal(t, 100, cfg.Budget.MaxVulnerabilitiesPerFile, "unset keys keep defaults")
	assert.Equal(t, "4", cfg.Budget.Workers)
	assert.True(t, cfg.Engine.Parallel)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.RegexTimeout)
	assert.Equal(t, 30*time.Second, cfg.Engine.BatchTimeout)
	assert.Equal(t, types.ConfidenceMedium, cfg.MinConfidence())
	assert.Equal(t, []string{"App.vue", "Login.vue:12"}, cfg.Engine.Suppressions)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "./rules", cfg.Rules.Path)
	assert.Equal(t, []string{"vue-demo-.*"}, cfg.Rules.Exclude)

	b, err := cfg.ToBudget()
	require.NoError(t, err)
	assert.Equal(t, types.WorkerCount(4), b.WorkerCount)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
budget:
  max_rules_per_file: 50
log:
  level: debug
`)
	t.Setenv("VUESCAN_BUDGET_MAX_RULES_PER_FILE", "25")
	t.Setenv("VUESCAN_ENGINE_REGEX_TIMEOUT", "2s")
	t.Setenv("VUESCAN_ENGINE_DEDUPE", "true")
	t.Setenv("VUESCAN_ENGINE_SUPPRESSIONS", "a.vue,b.js:3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Budget.MaxRulesPerFile)
	assert.Equal(t, 2*time.Second, cfg.Engine.RegexTimeout)
	assert.True(t, cfg.Engine.Dedupe)
	assert.Equal(t, []string{"a.vue", "b.js:3"}, cfg.Engine.Suppressions)
	assert.Equal(t, "debug", cfg.Log.Level, "file value kept when env is unset")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "budget: [", "failed to parse config"},
		{"negative threshold", "budget:\n  priority_threshold: -1\n", "priority_threshold"},
		{"bad workers", "budget:\n  workers: zero\n", "budget.workers"},
		{"zero workers", "budget:\n  workers: 0\n", "budget.workers"},
		{"negative timeout", "engine:\n  regex_timeout: -1s\n", "regex_timeout"},
		{"bad confidence", "engine:\n  min_confidence: sure\n", "min_confidence"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "budget.max_rules_per_file", envKey("VUESCAN_BUDGET_MAX_RULES_PER_FILE"))
	assert.Equal(t, "log.level", envKey("VUESCAN_LOG_LEVEL"))
	assert.Equal(t, "debug", envKey("VUESCAN_DEBUG"))
}

func TestEnvValue_SplitsLists(t *testing.T) {
	key, value := envValue("VUESCAN_RULES_INCLUDE", "xss-.*, injection-.* ,")
	assert.Equal(t, "rules.include", key)
	assert.Equal(t, []string{"xss-.*", "injection-.*"}, value)

	key, value = envValue("VUESCAN_LOG_LEVEL", "warn,error")
	assert.Equal(t, "log.level", key)
	assert.Equal(t, "warn,error", value, "scalar keys are not split")
}

func TestLoad_EnvListsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
rules:
  include: ["secrets-.*"]
  exclude: ["xss-a"]
`)
	t.Setenv("VUESCAN_RULES_INCLUDE", "xss-.*,injection-.*")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"xss-.*", "injection-.*"}, cfg.Rules.Include)
	assert.Equal(t, []string{"xss-a"}, cfg.Rules.Exclude)
}
