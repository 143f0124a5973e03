// =============================================================================
// 📦 FirmRetr 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM:       DefaultLLMConfig(),
		Retry:     DefaultRetryConfig(),
		Voting:    DefaultVotingConfig(),
		Scheduler: DefaultSchedulerConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "deepseek",
		BaseURL:        "https://api.deepseek.com/v1",
		Model:          "deepseek-v3",
		Temperature:    1,
		Timeout:        360 * time.Second,
		MaxInputTokens: 65536,
	}
}

// DefaultRetryConfig 返回默认重试配置：4 次尝试，1s 基础延迟，100ms 抖动步长
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		BaseDelay:    time.Second,
		JitterStep:   100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		RandomJitter: true,
	}
}

// DefaultVotingConfig 返回默认投票配置
func DefaultVotingConfig() VotingConfig {
	return VotingConfig{
		InitialRounds:        5,
		MaxRounds:            10,
		ConsistencyThreshold: 0.8,
		EntropyThreshold:     0.5,
		MaxOracleFailures:    10,
		RoundInterval:        time.Second,
		Labels:               []string{"0", "1", "2", "3"},
	}
}

// DefaultSchedulerConfig 返回默认调度配置
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:   6,
		PacingMax: 10 * time.Second,
	}
}

// DefaultPipelineConfig 返回默认流水线配置
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ResultRoot:  "results",
		PromptPath:  "prompts/phase2_system.txt",
		StatsFile:   "firmproj_stats.json",
		ErrorLogDir: "logs/llm_preprocess",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "firmretr",
		SampleRate:   0.1,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		SeenKey:      "firmretr:phase2:seen",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "firmretr",
		Name:            "firmretr.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr:      "",
		Namespace: "firmretr",
	}
}
