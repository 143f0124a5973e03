package tokenizer

import (
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/llm"
)

// Tokenizer是统一的代号计数界面.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []llm.Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Counter 为 llm.Client 的预检提供 token 计数。
// 精确分词器失败时（例如编码数据无法加载）回退到估算器。
type Counter struct {
	primary  Tokenizer
	fallback Tokenizer
	logger   *zap.Logger
}

var _ llm.TokenCounter = (*Counter)(nil)

// NewCounter 为模型创建计数器：tiktoken 优先，估算器兜底。
func NewCounter(model string, logger *zap.Logger) *Counter {
	return NewCounterWith(NewTiktokenTokenizer(model), NewEstimator(model), logger)
}

// NewCounterWith 使用指定的分词器组合创建计数器.
func NewCounterWith(primary, fallback Tokenizer, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

// CountMessages 实现 llm.TokenCounter.
func (c *Counter) CountMessages(messages []llm.Message) (int, error) {
	if c.primary != nil {
		n, err := c.primary.CountMessages(messages)
		if err == nil {
			return n, nil
		}
		if c.fallback == nil {
			return 0, err
		}
		c.logger.Debug("falling back to estimator",
			zap.String("tokenizer", c.primary.Name()), zap.Error(err))
	}
	return c.fallback.CountMessages(messages)
}
