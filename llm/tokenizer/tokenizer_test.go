package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/firmretr/firmretr/llm"
)

type brokenTokenizer struct{}

func (brokenTokenizer) CountTokens(string) (int, error) { return 0, errors.New("no encoding data") }
func (brokenTokenizer) CountMessages([]llm.Message) (int, error) {
	return 0, errors.New("no encoding data")
}
func (brokenTokenizer) MaxTokens() int { return 0 }
func (brokenTokenizer) Name() string   { return "broken" }

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimator("deepseek-chat")
	assert.Equal(t, 65536, e.MaxTokens())
	assert.Equal(t, 8192, NewEstimator("unknown-model").MaxTokens())

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.CountTokens("固件接口")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 4 个 CJK + 8 个 ASCII
	n, err = e.CountTokens("固件接口/cgi-bin")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestEstimator_CountMessagesAddsOverhead(t *testing.T) {
	e := NewEstimator("m")
	n, err := e.CountMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "abcd"},
		{Role: llm.RoleUser, Content: "abcdefgh"},
	})
	require.NoError(t, err)
	// 内容 + 角色 + 每条 4 的开销，结尾再加 3
	assert.Equal(t, (1+1+4)+(2+1+4)+3, n)
}

func TestCounter_FallsBackToEstimator(t *testing.T) {
	c := NewCounterWith(brokenTokenizer{}, NewEstimator("m"), nil)
	n, err := c.CountMessages([]llm.Message{{Role: llm.RoleUser, Content: strings.Repeat("a", 400)}})
	require.NoError(t, err)
	assert.Equal(t, 100+1+4+3, n)
}

func TestCounter_NoFallbackReturnsError(t *testing.T) {
	c := NewCounterWith(brokenTokenizer{}, nil, nil)
	_, err := c.CountMessages([]llm.Message{{Role: llm.RoleUser, Content: "x"}})
	assert.Error(t, err)
}

func TestLookupEncoding(t *testing.T) {
	assert.Equal(t, "o200k_base", lookupEncoding("gpt-4o-mini").encoding)
	assert.Equal(t, 8192, lookupEncoding("gpt-4-0613").maxTokens)
	assert.Equal(t, 65536, lookupEncoding("deepseek-chat").maxTokens)
	assert.Equal(t, "cl100k_base", lookupEncoding("unknown-model").encoding)
}

func TestProperty_EstimatorMonotonic(t *testing.T) {
	e := NewEstimator("m")
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.String().Draw(rt, "a")
		b := rapid.String().Draw(rt, "b")
		na, _ := e.CountTokens(a)
		nab, _ := e.CountTokens(a + b)
		if nab < na {
			rt.Fatalf("count(%q)=%d < count(%q)=%d", a+b, nab, a, na)
		}
	})
}
