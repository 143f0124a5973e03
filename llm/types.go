package llm

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Finish reasons reported by providers.
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one classification request. Callers build it once per item
// and reuse it for every round; the client never mutates it.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	Temperature float32       `json:"temperature"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Usage is token accounting for one or more calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChatResponse is what a provider returns for a successful call.
type ChatResponse struct {
	ID           string `json:"id,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Result is the successful outcome of Client.Invoke.
type Result struct {
	Content      string        `json:"content"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Usage        Usage         `json:"usage"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	Attempts     int           `json:"attempts"`
	Latency      time.Duration `json:"latency"`
}
