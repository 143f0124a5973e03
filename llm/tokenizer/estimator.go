package tokenizer

import (
	"github.com/firmretr/firmretr/llm"
)

const (
	// 每条消息的固定开销（角色标记、分隔符）与整段对话结尾的开销
	messageOverhead = 4
	replyOverhead   = 3

	cjkCharsPerToken   = 1.5
	otherCharsPerToken = 4.0
)

// Estimator 在 tiktoken 编码数据不可用时按字符估算 token 数。
// 候选请求多为 ASCII 的 URL 与参数，提示词可能含中文，两类字符分别计。
type Estimator struct {
	maxTokens int
}

var _ Tokenizer = (*Estimator)(nil)

// NewEstimator 创建估算器，上下文上限与同名模型的 tiktoken 表一致
func NewEstimator(model string) *Estimator {
	return &Estimator{maxTokens: lookupEncoding(model).maxTokens}
}

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	n := int(float64(cjk)/cjkCharsPerToken + float64(other)/otherCharsPerToken)
	if n == 0 {
		n = 1
	}
	return n, nil
}

func (e *Estimator) CountMessages(messages []llm.Message) (int, error) {
	total := replyOverhead
	for _, msg := range messages {
		content, _ := e.CountTokens(msg.Content)
		role, _ := e.CountTokens(string(msg.Role))
		total += messageOverhead + content + role
	}
	return total, nil
}

func (e *Estimator) MaxTokens() int { return e.maxTokens }

func (e *Estimator) Name() string { return "estimator" }

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // 中文标点
		(r >= 0xFF00 && r <= 0xFFEF) // 全角字符
}
