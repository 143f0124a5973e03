package seen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed RedisSet.
var ErrClosed = errors.New("seen set is closed")

// Set 记录已处理过的条目（如 app 名），跨 worker 共享。
type Set interface {
	// Add 加入 key，返回 key 此前是否不存在
	Add(ctx context.Context, key string) (bool, error)
	// Contains 判断 key 是否已存在
	Contains(ctx context.Context, key string) (bool, error)
}

// Recorder 接收命中/未命中观测，internal/metrics.Collector 实现了它
type Recorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// =============================================================================
// 🧠 进程内实现
// =============================================================================

// MemorySet 进程内集合，进程退出后丢失
type MemorySet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemorySet 创建进程内集合
func NewMemorySet() *MemorySet {
	return &MemorySet{keys: make(map[string]struct{})}
}

// Add 加入 key
func (s *MemorySet) Add(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

// Contains 判断 key 是否存在
func (s *MemorySet) Contains(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

// Len 返回元素个数
func (s *MemorySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// =============================================================================
// 💾 Redis 实现
// =============================================================================

// RedisConfig Redis 集合配置
type RedisConfig struct {
	Addr         string `yaml:"addr" json:"addr"`
	Password     string `yaml:"password" json:"password"`
	DB           int    `yaml:"db" json:"db"`
	PoolSize     int    `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" json:"min_idle_conns"`
	// Key 集合所在的 Redis key
	Key string `yaml:"key" json:"key"`
}

// RedisSet 基于单个 Redis SET 的集合（SADD / SISMEMBER），可跨进程、跨运行复用
type RedisSet struct {
	client   *redis.Client
	key      string
	recorder Recorder
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedisSet 连接 Redis 并创建集合
func NewRedisSet(cfg RedisConfig, logger *zap.Logger) (*RedisSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("seen set key is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("seen set initialized",
		zap.String("addr", cfg.Addr),
		zap.String("key", cfg.Key),
	)

	return &RedisSet{
		client: client,
		key:    cfg.Key,
		logger: logger.With(zap.String("component", "seen")),
	}, nil
}

// WithRecorder 设置命中率记录器
func (s *RedisSet) WithRecorder(r Recorder) *RedisSet {
	s.recorder = r
	return s
}

// Add 加入 key
func (s *RedisSet) Add(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	n, err := s.client.SAdd(ctx, s.key, key).Result()
	if err != nil {
		s.logger.Error("seen add failed", zap.String("member", key), zap.Error(err))
		return false, fmt.Errorf("seen add failed: %w", err)
	}
	return n == 1, nil
}

// Contains 判断 key 是否存在
func (s *RedisSet) Contains(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	ok, err := s.client.SIsMember(ctx, s.key, key).Result()
	if err != nil {
		s.logger.Error("seen lookup failed", zap.String("member", key), zap.Error(err))
		return false, fmt.Errorf("seen lookup failed: %w", err)
	}
	if s.recorder != nil {
		if ok {
			s.recorder.RecordCacheHit("seen")
		} else {
			s.recorder.RecordCacheMiss("seen")
		}
	}
	return ok, nil
}

// Len 返回集合大小
func (s *RedisSet) Len(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return s.client.SCard(ctx, s.key).Result()
}

// Close 关闭连接
func (s *RedisSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing seen set")
	return s.client.Close()
}
