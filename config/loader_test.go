// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, 6, cfg.Scheduler.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
llm:
  provider: "anthropic"
  model: "claude-sonnet-4-5"
  temperature: 0.5
  timeout: 90s

retry:
  max_attempts: 6
  base_delay: 500ms

voting:
  initial_rounds: 3
  max_rounds: 7
  labels: ["0", "1"]

scheduler:
  workers: 2
  pacing_max: 0s

pipeline:
  result_root: "/data/results"
  dataset: "netgear"

redis:
  enabled: true
  addr: "redis.example.com:6379"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)

	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.JitterStep)

	assert.Equal(t, 3, cfg.Voting.InitialRounds)
	assert.Equal(t, 7, cfg.Voting.MaxRounds)
	assert.Equal(t, []string{"0", "1"}, cfg.Voting.Labels)
	assert.InDelta(t, 0.8, cfg.Voting.ConsistencyThreshold, 1e-9)

	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.Zero(t, cfg.Scheduler.PacingMax)

	assert.Equal(t, "/data/results", cfg.Pipeline.ResultRoot)
	assert.Equal(t, "netgear", cfg.Pipeline.Dataset)
	assert.Equal(t, "firmproj_stats.json", cfg.Pipeline.StatsFile)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"FIRMRETR_LLM_PROVIDER":               "openai",
		"FIRMRETR_LLM_API_KEY":                "sk-env",
		"FIRMRETR_LLM_TEMPERATURE":            "0.7",
		"FIRMRETR_RETRY_RANDOM_JITTER":        "false",
		"FIRMRETR_VOTING_MAX_ROUNDS":          "12",
		"FIRMRETR_VOTING_ROUND_INTERVAL":      "250ms",
		"FIRMRETR_VOTING_LABELS":              "0, 1, 2",
		"FIRMRETR_SCHEDULER_WORKERS":          "3",
		"FIRMRETR_PIPELINE_DATASET":           "tplink",
		"FIRMRETR_DATABASE_DRIVER":            "postgres",
		"FIRMRETR_TELEMETRY_SAMPLE_RATE":      "0.25",
		"FIRMRETR_METRICS_ADDR":               ":9091",
		"FIRMRETR_LOG_OUTPUT_PATHS":           "stdout,/tmp/firmretr.log",
		"FIRMRETR_LLM_MAX_INPUT_TOKENS":       "32000",
		"FIRMRETR_REDIS_SEEN_KEY":             "seen:test",
		"FIRMRETR_DATABASE_CONN_MAX_LIFETIME": "1m",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.False(t, cfg.Retry.RandomJitter)
	assert.Equal(t, 12, cfg.Voting.MaxRounds)
	assert.Equal(t, 250*time.Millisecond, cfg.Voting.RoundInterval)
	assert.Equal(t, []string{"0", "1", "2"}, cfg.Voting.Labels)
	assert.Equal(t, 3, cfg.Scheduler.Workers)
	assert.Equal(t, "tplink", cfg.Pipeline.Dataset)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRate, 1e-9)
	assert.Equal(t, ":9091", cfg.Metrics.Addr)
	assert.Equal(t, []string{"stdout", "/tmp/firmretr.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 32000, cfg.LLM.MaxInputTokens)
	assert.Equal(t, "seen:test", cfg.Redis.SeenKey)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
llm:
  model: "yaml-model"
scheduler:
  workers: 4
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("FIRMRETR_SCHEDULER_WORKERS", "9")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量覆盖 YAML，YAML 值在未被覆盖时保留
	assert.Equal(t, 9, cfg.Scheduler.Workers)
	assert.Equal(t, "yaml-model", cfg.LLM.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_PIPELINE_DATASET", "custom")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, "custom", cfg.Pipeline.Dataset)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("FIRMRETR_VOTING_ROUND_INTERVAL", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIRMRETR_VOTING_ROUND_INTERVAL")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("FIRMRETR_SCHEDULER_WORKERS", "0")

	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 6, cfg.Scheduler.Workers)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
voting:
  max_rounds: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("FIRMRETR_LLM_MODEL", "deepseek-r1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "deepseek-r1", cfg.LLM.Model)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "anthropic provider", modify: func(c *Config) { c.LLM.Provider = "anthropic" }},
		{name: "unknown provider", modify: func(c *Config) { c.LLM.Provider = "gemini" }, wantErr: true},
		{name: "negative temperature", modify: func(c *Config) { c.LLM.Temperature = -0.5 }, wantErr: true},
		{name: "temperature too high", modify: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: true},
		{name: "zero attempts", modify: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: true},
		{name: "min samples above max rounds", modify: func(c *Config) { c.Voting.MinSamples = 11 }, wantErr: true},
		{name: "initial above max rounds", modify: func(c *Config) { c.Voting.InitialRounds = 20 }, wantErr: true},
		{name: "zero workers", modify: func(c *Config) { c.Scheduler.Workers = 0 }, wantErr: true},
		{name: "negative pacing", modify: func(c *Config) { c.Scheduler.PacingMax = -time.Second }, wantErr: true},
		{
			name: "database enabled with unknown driver",
			modify: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Driver = "oracle"
			},
			wantErr: true,
		},
		{
			name:   "unknown driver ignored while disabled",
			modify: func(c *Config) { c.Database.Driver = "oracle" },
		},
		{
			name: "sample rate out of range",
			modify: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRate = 1.5
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.Workers = 0
	cfg.Retry.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}
