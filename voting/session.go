package voting

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/firmretr/firmretr/llm"
)

// State 投票会话状态
type State int

const (
	StateCollecting State = iota
	StateEvaluating
	StateConsensusReached
	StateRoundBudgetExhausted
	StateAbortedOnFailures
)

var stateNames = map[State]string{
	StateCollecting:           "collecting",
	StateEvaluating:           "evaluating",
	StateConsensusReached:     "consensus_reached",
	StateRoundBudgetExhausted: "round_budget_exhausted",
	StateAbortedOnFailures:    "aborted_on_failures",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText 使状态在 JSON 中以名称输出
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the session has finished.
func (s State) Terminal() bool {
	return s >= StateConsensusReached
}

// Vote 一次成功的预言机回答
type Vote struct {
	Label    string        `json:"label"`
	Usage    llm.Usage     `json:"usage"`
	Round    int           `json:"round"`
	Attempts int           `json:"attempts"`
	Latency  time.Duration `json:"latency"`
}

// Session 单个分类目标的投票状态。
// 只由驱动它的那个 goroutine 访问，不加锁。
type Session struct {
	ID        string
	StartedAt time.Time

	request *llm.ChatRequest
	votes   []Vote
	tally   tally
	usage   llm.Usage
	state   State

	failures            int
	consecutiveFailures int
	lastErr             error

	consistency float64
	entropy     float64

	limiter *rate.Limiter
}

// NewSession 为 req 创建一个空会话。每一轮都复用同一个请求。
func NewSession(req *llm.ChatRequest) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		request:   req,
		tally:     newTally(),
		state:     StateCollecting,
	}
}

func (s *Session) Request() *llm.ChatRequest { return s.request }
func (s *Session) State() State { return s.state }
func (s *Session) Rounds() int { return len(s.votes) }
func (s *Session) Failures() int { return s.failures }
func (s *Session) ConsecutiveFailures() int { return s.consecutiveFailures }
func (s *Session) LastError() error { return s.lastErr }
func (s *Session) Usage() llm.Usage { return s.usage }

// Votes returns a copy of the collected votes in round order.
func (s *Session) Votes() []Vote {
	out := make([]Vote, len(s.votes))
	copy(out, s.votes)
	return out
}

// Distribution returns label → count over all votes.
func (s *Session) Distribution() map[string]int {
	return s.tally.distribution()
}

func (s *Session) recordVote(label string, res *llm.Result) Vote {
	v := Vote{
		Label:    label,
		Usage:    res.Usage,
		Round:    len(s.votes) + 1,
		Attempts: res.Attempts,
		Latency:  res.Latency,
	}
	s.votes = append(s.votes, v)
	s.tally.add(label)
	s.usage.Add(res.Usage)
	s.consecutiveFailures = 0
	return v
}

func (s *Session) recordFailure(err error) int {
	s.failures++
	s.consecutiveFailures++
	s.lastErr = err
	return s.failures
}

// evaluate 重新计算一致性与熵
func (s *Session) evaluate() (float64, float64) {
	s.consistency = s.tally.consistency()
	s.entropy = s.tally.entropy()
	return s.consistency, s.entropy
}

func (s *Session) outcome(elapsed time.Duration) *Outcome {
	label, _ := s.tally.majority()
	return &Outcome{
		SessionID:    s.ID,
		Label:        label,
		Consistency:  s.consistency,
		Entropy:      s.entropy,
		Distribution: s.tally.distribution(),
		Usage:        s.usage,
		Elapsed:      elapsed,
		Rounds:       len(s.votes),
		Failures:     s.failures,
		Termination:  s.state,
	}
}
