package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/firmretr/firmretr/llm"
)

// ErrNoResult 表示失败次数耗尽，会话没有结果。
// 这是一个正常的、可记录的结局，调用方应跳过该条目而不是中止批处理。
var ErrNoResult = errors.New("voting: no result")

// Invoker 是执行器对预言机客户端的最小依赖，*llm.Client 实现了它
type Invoker interface {
	Invoke(ctx context.Context, req *llm.ChatRequest) (*llm.Result, error)
}

// Executor 执行单轮投票
type Executor struct {
	invoker     Invoker
	maxFailures int
	labels      []string
	interval    time.Duration
	logger      *zap.Logger
}

// NewExecutor 创建执行器。cfg.RoundInterval > 0 时同一会话的两次调用之间至少间隔该时长；
// 间隔按会话计，不同会话（不同 worker）互不等待。
func NewExecutor(invoker Invoker, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		invoker:     invoker,
		maxFailures: cfg.MaxOracleFailures,
		labels:      cfg.Labels,
		interval:    cfg.RoundInterval,
		logger:      logger.With(zap.String("component", "vote_executor")),
	}
	return e
}

// Round 取得恰好一张选票。每次失败都计入会话；失败总数达到上限时返回 ErrNoResult。
// 不可解析的回答按 KindDecode 失败处理，不算选票。
func (e *Executor) Round(ctx context.Context, s *Session) (Vote, error) {
	for {
		if s.Failures() >= e.maxFailures {
			return Vote{}, e.exhausted(s)
		}
		if lim := e.limiterFor(s); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return Vote{}, fmt.Errorf("wait for round slot: %w", err)
			}
		}

		res, err := e.invoker.Invoke(ctx, s.Request())
		if err == nil {
			label, perr := llm.ParseLabel(res.Content, e.labels)
			if perr == nil {
				return s.recordVote(label, res), nil
			}
			err = llm.NewError(llm.KindDecode, "undecodable label").WithCause(perr).WithProvider(res.Provider)
		}

		n := s.recordFailure(err)
		e.logger.Warn("oracle round failed",
			zap.String("session_id", s.ID),
			zap.Int("failures", n),
			zap.Int("consecutive_failures", s.ConsecutiveFailures()),
			zap.Int("max_failures", e.maxFailures),
			zap.Stringer("kind", llm.KindOf(err)),
			zap.Error(err),
		)
		if n >= e.maxFailures {
			return Vote{}, e.exhausted(s)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Vote{}, fmt.Errorf("voting canceled: %w", ctxErr)
		}
	}
}

// limiterFor 返回会话自己的节流器，首次调用时创建
func (e *Executor) limiterFor(s *Session) *rate.Limiter {
	if e.interval <= 0 {
		return nil
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Every(e.interval), 1)
	}
	return s.limiter
}

func (e *Executor) exhausted(s *Session) error {
	return fmt.Errorf("%w: %d oracle failures (last: %v)", ErrNoResult, s.Failures(), s.LastError())
}
