// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/llm"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 预言机调用指标
	llmInvocationsTotal *prometheus.CounterVec
	llmInvocationDur    *prometheus.HistogramVec
	llmRetriesTotal     *prometheus.CounterVec
	llmTokensUsed       *prometheus.CounterVec

	// 投票指标
	votingSessionsTotal *prometheus.CounterVec
	votingRounds        *prometheus.HistogramVec
	votingFailures      *prometheus.HistogramVec
	votingDuration      *prometheus.HistogramVec

	// 批处理指标
	batchItemsTotal  *prometheus.CounterVec
	batchItemSeconds *prometheus.HistogramVec

	// 已处理集合指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

var _ llm.Recorder = (*Collector)(nil)

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 预言机调用指标
	c.llmInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_invocations_total",
			Help:      "Total number of oracle call attempts by outcome",
		},
		[]string{"provider", "model", "outcome"}, // outcome: success 或错误类别
	)

	c.llmInvocationDur = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_invocation_duration_seconds",
			Help:      "Oracle call attempt duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 360},
		},
		[]string{"provider", "model"},
	)

	c.llmRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Total number of oracle retries by error kind",
		},
		[]string{"provider", "kind"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 投票指标
	c.votingSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voting_sessions_total",
			Help:      "Total number of voting sessions by termination state",
		},
		[]string{"termination"},
	)

	c.votingRounds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voting_rounds",
			Help:      "Successful rounds per voting session",
			Buckets:   prometheus.LinearBuckets(1, 1, 12),
		},
		[]string{"termination"},
	)

	c.votingFailures = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voting_failures",
			Help:      "Oracle failures per voting session",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		},
		[]string{"termination"},
	)

	c.votingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voting_session_duration_seconds",
			Help:      "Voting session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"termination"},
	)

	// 批处理指标
	c.batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Total number of batch items by status",
		},
		[]string{"status"},
	)

	c.batchItemSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_item_duration_seconds",
			Help:      "Batch item processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"status"},
	)

	// 已处理集合指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🤖 预言机调用指标记录
// =============================================================================

// RecordInvocation 记录一次调用尝试
func (c *Collector) RecordInvocation(provider, model, outcome string, latency float64) {
	c.llmInvocationsTotal.WithLabelValues(provider, model, outcome).Inc()
	c.llmInvocationDur.WithLabelValues(provider, model).Observe(latency)
}

// RecordRetry 记录一次重试
func (c *Collector) RecordRetry(provider string, kind llm.ErrorKind) {
	c.llmRetriesTotal.WithLabelValues(provider, kind.String()).Inc()
}

// RecordTokens 记录 Token 用量
func (c *Collector) RecordTokens(provider, model string, usage llm.Usage) {
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
}

// =============================================================================
// 🗳️ 投票指标记录
// =============================================================================

// RecordSession 记录一次投票会话
func (c *Collector) RecordSession(termination string, rounds, failures int, elapsed float64) {
	c.votingSessionsTotal.WithLabelValues(termination).Inc()
	c.votingRounds.WithLabelValues(termination).Observe(float64(rounds))
	c.votingFailures.WithLabelValues(termination).Observe(float64(failures))
	c.votingDuration.WithLabelValues(termination).Observe(elapsed)
}

// =============================================================================
// 📦 批处理指标记录
// =============================================================================

// RecordItem 记录一个批处理条目
func (c *Collector) RecordItem(status string, seconds float64) {
	c.batchItemsTotal.WithLabelValues(status).Inc()
	c.batchItemSeconds.WithLabelValues(status).Observe(seconds)
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
