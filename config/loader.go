// =============================================================================
// 📦 FirmRetr 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("FIRMRETR").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/firmretr/firmretr/internal/pool"
	"github.com/firmretr/firmretr/llm/retry"
	"github.com/firmretr/firmretr/voting"
)

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 FirmRetr 的完整配置结构
type Config struct {
	// LLM 预言机配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Retry 单次调用的重试策略
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Voting 投票引擎配置
	Voting VotingConfig `yaml:"voting" env:"VOTING"`

	// Scheduler 批处理调度配置
	Scheduler SchedulerConfig `yaml:"scheduler" env:"SCHEDULER"`

	// Pipeline 分类流水线路径配置
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Redis 已处理集合配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 结果持久化配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// LLMConfig LLM 预言机配置
type LLMConfig struct {
	// Provider: deepseek, openai, anthropic
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大输出 Token 数，0 表示由 Provider 决定
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 提示词 Token 上限，超过时不调用预言机；0 表示不检查
	MaxInputTokens int `yaml:"max_input_tokens" env:"MAX_INPUT_TOKENS"`
}

// RetryConfig 重试策略配置
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	BaseDelay    time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	JitterStep   time.Duration `yaml:"jitter_step" env:"JITTER_STEP"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	RandomJitter bool          `yaml:"random_jitter" env:"RANDOM_JITTER"`
}

// VotingConfig 投票引擎配置
type VotingConfig struct {
	InitialRounds        int           `yaml:"initial_rounds" env:"INITIAL_ROUNDS"`
	MaxRounds            int           `yaml:"max_rounds" env:"MAX_ROUNDS"`
	ConsistencyThreshold float64       `yaml:"consistency_threshold" env:"CONSISTENCY_THRESHOLD"`
	EntropyThreshold     float64       `yaml:"entropy_threshold" env:"ENTROPY_THRESHOLD"`
	MaxOracleFailures    int           `yaml:"max_oracle_failures" env:"MAX_ORACLE_FAILURES"`
	MinSamples           int           `yaml:"min_samples" env:"MIN_SAMPLES"`
	RoundInterval        time.Duration `yaml:"round_interval" env:"ROUND_INTERVAL"`
	// 允许的标签，逗号分隔的环境变量
	Labels []string `yaml:"labels" env:"LABELS"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	// 并发 worker 数
	Workers int `yaml:"workers" env:"WORKERS"`
	// 条目完成后的随机等待上限
	PacingMax time.Duration `yaml:"pacing_max" env:"PACING_MAX"`
}

// PipelineConfig 分类流水线配置
type PipelineConfig struct {
	// 结果根目录，下级为 <dataset>/<app>
	ResultRoot string `yaml:"result_root" env:"RESULT_ROOT"`
	// 数据集名称
	Dataset string `yaml:"dataset" env:"DATASET"`
	// 系统提示词文件
	PromptPath string `yaml:"prompt_path" env:"PROMPT_PATH"`
	// 每个 app 目录下的统计文件名
	StatsFile string `yaml:"stats_file" env:"STATS_FILE"`
	// 批处理错误报告目录
	ErrorLogDir string `yaml:"error_log_dir" env:"ERROR_LOG_DIR"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用；关闭时已处理集合只存在于进程内
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 已处理集合的 key
	SeenKey string `yaml:"seen_key" env:"SEEN_KEY"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 是否持久化投票结果
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MetricsConfig Prometheus 配置
type MetricsConfig struct {
	// 监听地址，空表示不暴露 /metrics
	Addr string `yaml:"addr" env:"ADDR"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FIRMRETR",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch c.LLM.Provider {
	case "deepseek", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, "llm timeout must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry max_attempts must be positive")
	}
	if err := c.Voting.Engine().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scheduler.Workers < 1 {
		errs = append(errs, "scheduler workers must be positive")
	}
	if c.Scheduler.PacingMax < 0 {
		errs = append(errs, "scheduler pacing_max must not be negative")
	}
	if c.Database.Enabled && c.Database.DSN() == "" {
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Telemetry.Enabled && (c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1) {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// Policy 转换为 retry.Policy
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		BaseDelay:    r.BaseDelay,
		JitterStep:   r.JitterStep,
		MaxDelay:     r.MaxDelay,
		RandomJitter: r.RandomJitter,
	}
}

// Engine 转换为 voting.Config
func (v VotingConfig) Engine() voting.Config {
	return voting.Config{
		InitialRounds:        v.InitialRounds,
		MaxRounds:            v.MaxRounds,
		ConsistencyThreshold: v.ConsistencyThreshold,
		EntropyThreshold:     v.EntropyThreshold,
		MaxOracleFailures:    v.MaxOracleFailures,
		MinSamples:           v.MinSamples,
		RoundInterval:        v.RoundInterval,
		Labels:               v.Labels,
	}
}

// Pool 转换为 pool.Config
func (s SchedulerConfig) Pool() pool.Config {
	return pool.Config{Workers: s.Workers, PacingMax: s.PacingMax}
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
