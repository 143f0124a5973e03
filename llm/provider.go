package llm

import "context"

// Provider 定义了统一的 LLM 适配接口。
// Completion 返回的错误应当已经是 *Error；未分类的错误由 Classify 兜底。
type Provider interface {
	// Completion 发起一次同步聊天请求
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}

// TokenCounter estimates the prompt size of a message list.
type TokenCounter interface {
	CountMessages(messages []Message) (int, error)
}

// Recorder receives per-attempt observations. internal/metrics.Collector
// implements it; nil disables recording.
type Recorder interface {
	RecordInvocation(provider, model, outcome string, latency float64)
	RecordRetry(provider string, kind ErrorKind)
	RecordTokens(provider, model string, usage Usage)
}
