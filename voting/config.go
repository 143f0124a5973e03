package voting

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid voting config")

// Config 投票引擎配置
type Config struct {
	InitialRounds        int           `json:"initial_rounds" yaml:"initial_rounds"`               // 开始评估前的最少成功轮次
	MaxRounds            int           `json:"max_rounds" yaml:"max_rounds"`                       // 成功轮次上限
	ConsistencyThreshold float64       `json:"consistency_threshold" yaml:"consistency_threshold"` // 多数标签占比阈值
	EntropyThreshold     float64       `json:"entropy_threshold" yaml:"entropy_threshold"`         // 分布熵上限（自然对数）
	MaxOracleFailures    int           `json:"max_oracle_failures" yaml:"max_oracle_failures"`     // 失败总数达到该值即放弃
	MinSamples           int           `json:"min_samples" yaml:"min_samples"`                     // 额外的最小样本量，0 表示沿用 InitialRounds
	RoundInterval        time.Duration `json:"round_interval" yaml:"round_interval"`               // 同一会话两次调用之间的最小间隔，0 表示不限速
	Labels               []string      `json:"labels,omitempty" yaml:"labels,omitempty"`           // 允许的标签集合，空表示不限制
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		InitialRounds:        5,
		MaxRounds:            10,
		ConsistencyThreshold: 0.8,
		EntropyThreshold:     0.5,
		MaxOracleFailures:    10,
		RoundInterval:        time.Second,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	switch {
	case c.InitialRounds < 1:
		return fmt.Errorf("%w: initial_rounds must be >= 1, got %d", ErrInvalidConfig, c.InitialRounds)
	case c.MaxRounds < c.InitialRounds:
		return fmt.Errorf("%w: max_rounds (%d) must be >= initial_rounds (%d)", ErrInvalidConfig, c.MaxRounds, c.InitialRounds)
	case c.MinSamples < 0 || c.MinSamples > c.MaxRounds:
		return fmt.Errorf("%w: min_samples must be within [0, max_rounds], got %d", ErrInvalidConfig, c.MinSamples)
	case c.ConsistencyThreshold <= 0 || c.ConsistencyThreshold > 1:
		return fmt.Errorf("%w: consistency_threshold must be within (0, 1], got %g", ErrInvalidConfig, c.ConsistencyThreshold)
	case c.EntropyThreshold < 0:
		return fmt.Errorf("%w: entropy_threshold must be >= 0, got %g", ErrInvalidConfig, c.EntropyThreshold)
	case c.MaxOracleFailures < 1:
		return fmt.Errorf("%w: max_oracle_failures must be >= 1, got %d", ErrInvalidConfig, c.MaxOracleFailures)
	case c.RoundInterval < 0:
		return fmt.Errorf("%w: round_interval must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// evaluationFloor 返回开始评估所需的成功轮次
func (c Config) evaluationFloor() int {
	if c.MinSamples > c.InitialRounds {
		return c.MinSamples
	}
	return c.InitialRounds
}
