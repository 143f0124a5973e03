package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy 定义调用预言机时的重试策略
// 延迟公式：BaseDelay * 2^attempt + JitterStep * attempt (+ 可选随机项 < JitterStep)
type Policy struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`   // 总尝试次数（含第一次）
	BaseDelay    time.Duration `json:"base_delay" yaml:"base_delay"`       // 基础延迟
	JitterStep   time.Duration `json:"jitter_step" yaml:"jitter_step"`     // 每次尝试递增的抖动步长
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`         // 单次延迟上限，0 表示不限制
	RandomJitter bool          `json:"random_jitter" yaml:"random_jitter"` // 是否追加随机抖动（防止并发调用同时重试）
}

// DefaultPolicy 返回默认的重试策略：4 次尝试，1s 基础延迟，100ms 抖动步长
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  4,
		BaseDelay:    time.Second,
		JitterStep:   100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		RandomJitter: true,
	}
}

// Normalize 修正非法参数
func (p Policy) Normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.JitterStep < 0 {
		p.JitterStep = 0
	}
	if p.MaxDelay < 0 {
		p.MaxDelay = 0
	}
	return p
}

// Delay 计算第 attempt 次失败（从 0 开始）之后的等待时间。
// rnd 为 nil 或未开启 RandomJitter 时结果是确定的。
func (p Policy) Delay(attempt int, rnd *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.BaseDelay)*math.Pow(2, float64(attempt)) + float64(p.JitterStep)*float64(attempt)
	if p.RandomJitter && rnd != nil && p.JitterStep > 0 {
		delay += rnd.Float64() * float64(p.JitterStep)
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Ceiling 返回一次调用在所有重试间隔上最多等待的总时长。
// 最后一次尝试之后不再等待，因此只累加 MaxAttempts-1 个间隔。
func (p Policy) Ceiling() time.Duration {
	var total time.Duration
	for attempt := 0; attempt < p.MaxAttempts-1; attempt++ {
		d := float64(p.BaseDelay)*math.Pow(2, float64(attempt)) + float64(p.JitterStep)*float64(attempt+1)
		if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
		}
		total += time.Duration(d)
	}
	return total
}

// String 便于日志输出
func (p Policy) String() string {
	return fmt.Sprintf("attempts=%d base=%s jitter=%s max=%s", p.MaxAttempts, p.BaseDelay, p.JitterStep, p.MaxDelay)
}

// SleepFunc 等待指定时长，context 取消时提前返回
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 是默认的 SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("重试被取消: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
