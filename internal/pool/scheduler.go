package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoItems 表示没有可调度的条目
var ErrNoItems = errors.New("pool: no items to schedule")

// Task 处理一个条目
type Task func(ctx context.Context, id string) error

// ProgressFunc 在每个条目完成后调用，done 为已完成数量
type ProgressFunc func(done, total int, id string, err error)

// Recorder 接收条目级观测数据，internal/metrics.Collector 实现了它
type Recorder interface {
	RecordItem(status string, seconds float64)
}

// SleepFunc 等待指定时长，context 取消时提前返回
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures the scheduler.
type Config struct {
	Workers   int           `json:"workers" yaml:"workers"`
	PacingMax time.Duration `json:"pacing_max" yaml:"pacing_max"` // 条目完成后在 [0, PacingMax] 内随机等待，0 表示不等待
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   6,
		PacingMax: 10 * time.Second,
	}
}

// Scheduler 以最多 Workers 个并发运行任务
type Scheduler struct {
	cfg        Config
	logger     *zap.Logger
	onProgress ProgressFunc
	recorder   Recorder
	sleep      SleepFunc

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) { s.onProgress = fn }
}

func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithSleep replaces the pacing sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg Config, opts ...Option) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PacingMax < 0 {
		cfg.PacingMax = 0
	}
	s := &Scheduler{
		cfg:    cfg,
		logger: zap.NewNop(),
		sleep:  sleepCtx,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"))
	return s
}

// Run 为每个 id 运行一次 task 并等待全部完成。
// 返回的 Report 恰好包含每个条目一次（成功或错误）。
func (s *Scheduler) Run(ctx context.Context, ids []string, task Task) *Report {
	report := newReport(len(ids))
	if len(ids) == 0 {
		return report
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	s.logger.Info("batch started", zap.Int("items", len(ids)), zap.Int("workers", s.cfg.Workers))
	start := time.Now()

	for _, id := range ids {
		g.Go(func() error {
			itemStart := time.Now()
			err := s.execute(gctx, task, id)
			elapsed := time.Since(itemStart)

			report.record(id, err, elapsed)
			n := int(done.Add(1))
			s.observe(id, err, elapsed)
			if s.onProgress != nil {
				s.onProgress(n, len(ids), id, err)
			}

			s.pace(gctx)
			return nil // 不让 errgroup 提前终止，错误已记录在 report 中
		})
	}
	_ = g.Wait()

	s.logger.Info("batch finished",
		zap.Int("items", len(ids)),
		zap.Int("failed", report.Failed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report
}

func (s *Scheduler) execute(ctx context.Context, task Task, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", zap.String("item", id), zap.Any("panic", r))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx, id)
}

func (s *Scheduler) observe(id string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Warn("item failed", zap.String("item", id), zap.Error(err))
	} else {
		s.logger.Debug("item completed", zap.String("item", id), zap.Duration("elapsed", elapsed))
	}
	if s.recorder != nil {
		s.recorder.RecordItem(status, elapsed.Seconds())
	}
}

// pace 在 worker 上随机等待，避免集中冲击上游限流
func (s *Scheduler) pace(ctx context.Context) {
	if s.cfg.PacingMax <= 0 {
		return
	}
	s.rndMu.Lock()
	d := time.Duration(s.rnd.Int63n(int64(s.cfg.PacingMax) + 1))
	s.rndMu.Unlock()
	_ = s.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
