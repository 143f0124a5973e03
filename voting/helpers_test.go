package voting

import (
	"context"
	"sync"

	"github.com/firmretr/firmretr/llm"
)

// reply 是脚本中的一步：label 非空时返回成功，否则返回 err
type reply struct {
	content string
	err     error
}

func answer(content string) reply { return reply{content: content} }

func failure(kind llm.ErrorKind) reply { return reply{err: llm.NewError(kind, kind.String())} }

// scriptedInvoker 依次返回脚本中的回复；脚本用完后重复 tail
type scriptedInvoker struct {
	mu     sync.Mutex
	script []reply
	tail   reply
	calls  int
}

func (s *scriptedInvoker) Invoke(_ context.Context, _ *llm.ChatRequest) (*llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.tail
	if s.calls < len(s.script) {
		r = s.script[s.calls]
	}
	s.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Result{
		Content:  r.content,
		Usage:    llm.Usage{PromptTokens: 100, CompletionTokens: 1, TotalTokens: 101},
		Attempts: 1,
	}, nil
}

func (s *scriptedInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RoundInterval = 0
	return cfg
}

func classifyRequest() *llm.ChatRequest {
	return &llm.ChatRequest{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: "classify the url"},
		{Role: llm.RoleUser, Content: `{"url": "/cgi-bin/upgrade"}`},
	}}
}

type sessionRecord struct {
	termination string
	rounds      int
	failures    int
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []sessionRecord
}

func (f *fakeRecorder) RecordSession(termination string, rounds, failures int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionRecord{termination, rounds, failures})
}
