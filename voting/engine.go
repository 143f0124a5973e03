package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/internal/ctxkeys"
	"github.com/firmretr/firmretr/llm"
)

const tracerName = "github.com/firmretr/firmretr/voting"

// Recorder 接收会话级观测数据，internal/metrics.Collector 实现了它
type Recorder interface {
	RecordSession(termination string, rounds, failures int, elapsed float64)
}

// Engine 自适应多轮投票引擎。Engine 本身无状态，可被多个 worker 并发使用，
// 每次 Classify 都使用独立的 Session。
type Engine struct {
	cfg      Config
	executor *Executor
	recorder Recorder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option 配置 Engine
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine 创建投票引擎
func NewEngine(invoker Invoker, cfg Config, opts ...Option) (*Engine, error) {
	if invoker == nil {
		return nil, fmt.Errorf("%w: nil invoker", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.executor = NewExecutor(invoker, cfg, e.logger)
	e.logger = e.logger.With(zap.String("component", "voting_engine"))
	return e, nil
}

// Config 返回引擎配置
func (e *Engine) Config() Config { return e.cfg }

// Classify 对 req 运行一次完整的投票会话
func (e *Engine) Classify(ctx context.Context, req *llm.ChatRequest) (*Outcome, error) {
	return e.Run(ctx, NewSession(req))
}

// Run 驱动给定会话直到终止
func (e *Engine) Run(ctx context.Context, s *Session) (*Outcome, error) {
	attrs := []attribute.KeyValue{attribute.String("voting.session_id", s.ID)}
	if app, ok := ctxkeys.App(ctx); ok {
		attrs = append(attrs, attribute.String("firmretr.app", app))
	}
	if runID, ok := ctxkeys.RunID(ctx); ok {
		attrs = append(attrs, attribute.String("firmretr.run_id", runID))
	}
	ctx, span := e.tracer.Start(ctx, "voting.session", trace.WithAttributes(attrs...))
	defer span.End()

	outcome, err := e.run(ctx, s)
	elapsed := time.Since(s.StartedAt)
	if e.recorder != nil && s.State().Terminal() {
		e.recorder.RecordSession(s.State().String(), s.Rounds(), s.Failures(), elapsed.Seconds())
	}

	span.SetAttributes(
		attribute.String("voting.termination", s.State().String()),
		attribute.Int("voting.rounds", s.Rounds()),
		attribute.Int("voting.failures", s.Failures()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("voting.label", outcome.Label))
	return outcome, nil
}

func (e *Engine) run(ctx context.Context, s *Session) (*Outcome, error) {
	floor := e.cfg.evaluationFloor()
	logger := e.logger.With(zap.String("session_id", s.ID)).With(ctxkeys.Fields(ctx)...)

	for s.Rounds() < e.cfg.MaxRounds {
		vote, err := e.executor.Round(ctx, s)
		if err != nil {
			if errors.Is(err, ErrNoResult) {
				s.state = StateAbortedOnFailures
				logger.Error("voting aborted on oracle failures",
					zap.Int("rounds", s.Rounds()),
					zap.Int("failures", s.Failures()),
					zap.Error(s.LastError()),
				)
			}
			return nil, err
		}

		if s.Rounds() < floor {
			logger.Info("collecting votes",
				zap.Int("round", vote.Round),
				zap.String("label", vote.Label),
			)
			continue
		}

		s.state = StateEvaluating
		consistency, entropy := s.evaluate()
		logger.Info("vote distribution",
			zap.Int("round", vote.Round),
			zap.Any("distribution", s.Distribution()),
			zap.Float64("consistency", consistency),
			zap.Float64("entropy", entropy),
		)
		if consistency >= e.cfg.ConsistencyThreshold && entropy <= e.cfg.EntropyThreshold {
			s.state = StateConsensusReached
			break
		}
	}

	if s.state != StateConsensusReached {
		// 以最终分布为准重新计算一次
		s.evaluate()
		s.state = StateRoundBudgetExhausted
		logger.Info("round budget exhausted",
			zap.Int("rounds", s.Rounds()),
			zap.Any("distribution", s.Distribution()),
		)
	}

	return s.outcome(time.Since(s.StartedAt)), nil
}
