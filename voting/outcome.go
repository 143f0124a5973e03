package voting

import (
	"encoding/json"
	"time"

	"github.com/firmretr/firmretr/llm"
)

// Outcome 投票会话的最终结果，生成后不再修改
type Outcome struct {
	SessionID    string         `json:"session_id"`
	Label        string         `json:"winning_label"`
	Consistency  float64        `json:"consistency_score"`
	Entropy      float64        `json:"entropy"`
	Distribution map[string]int `json:"distribution"`
	Usage        llm.Usage      `json:"usage_total"`
	Elapsed      time.Duration  `json:"-"`
	Rounds       int            `json:"rounds"`
	Failures     int            `json:"failures"`
	Termination  State          `json:"termination"`
}

// MarshalJSON 额外输出 elapsed_seconds
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		alias
		ElapsedSeconds float64 `json:"elapsed_seconds"`
	}{
		alias:          alias(o),
		ElapsedSeconds: o.Elapsed.Seconds(),
	})
}

// Confident reports whether the session stopped on consensus rather than budget.
func (o *Outcome) Confident() bool {
	return o.Termination == StateConsensusReached
}
