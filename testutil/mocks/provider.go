// MockProvider 的 LLM 提供商测试模拟实现。
//
// 按顺序消费脚本化的回答或错误，脚本耗尽后返回默认标签 "0"。
package mocks

import (
	"context"
	"sync"

	"github.com/firmretr/firmretr/llm"
)

// Reply 是脚本中的一步：Err 非空时返回错误，否则返回 Content
type Reply struct {
	Content      string
	FinishReason string
	Err          error
}

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	script []Reply

	// Token 使用统计
	promptTokens     int
	completionTokens int

	calls []*llm.ChatRequest
}

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		promptTokens:     100,
		completionTokens: 1,
	}
}

// WithScript 追加按顺序消费的响应
func (m *MockProvider) WithScript(replies ...Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
	return m
}

// WithLabels 追加一串成功的标签回答
func (m *MockProvider) WithLabels(labels ...string) *MockProvider {
	replies := make([]Reply, len(labels))
	for i, l := range labels {
		replies[i] = Reply{Content: l}
	}
	return m.WithScript(replies...)
}

// WithTokenUsage 设置每次成功回答的 Token 使用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// Name 返回 Provider 名称
func (m *MockProvider) Name() string { return "mock" }

// Completion 消费脚本中的下一步
func (m *MockProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	reply := Reply{Content: "0"}
	if len(m.script) > 0 {
		reply = m.script[0]
		m.script = m.script[1:]
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	finish := reply.FinishReason
	if finish == "" {
		finish = llm.FinishReasonStop
	}
	return &llm.ChatResponse{
		ID:           "mock-response-id",
		Provider:     "mock",
		Model:        req.Model,
		Content:      reply.Content,
		FinishReason: finish,
		Usage: llm.Usage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
	}, nil
}

// GetCallCount 返回调用次数
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Remaining 返回尚未消费的脚本步数
func (m *MockProvider) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}
