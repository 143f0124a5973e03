package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/firmretr/firmretr/llm"
)

// TiktokenTokenizer为OpenAI-家庭模型改造tiktoken.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// 模型编码将模型名称前缀映射到其tiktoken编码和上下文大小。
// DeepSeek 没有公开的 tiktoken 编码，cl100k_base 的计数足够接近用于预检。
var modelEncodings = map[string]encodingInfo{
	"gpt-4o":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4":             {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":     {encoding: "cl100k_base", maxTokens: 16385},
	"deepseek-chat":     {encoding: "cl100k_base", maxTokens: 65536},
	"deepseek-reasoner": {encoding: "cl100k_base", maxTokens: 65536},
	"deepseek-v3":       {encoding: "cl100k_base", maxTokens: 65536},
	"deepseek-r1":       {encoding: "cl100k_base", maxTokens: 65536},
}

func lookupEncoding(model string) encodingInfo {
	if info, ok := modelEncodings[model]; ok {
		return info
	}
	// 最长前缀匹配，避免 gpt-4 抢先匹配 gpt-4o-mini
	best := ""
	for prefix := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return modelEncodings[best]
	}
	return encodingInfo{encoding: "cl100k_base", maxTokens: 8192}
}

// NewTiktokenTokenizer为给定型号创建了以tiktoken为主的代号.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	info := lookupEncoding(model)
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}
}

// init lazily 初始化 tiktoken 编码(可以在第一次使用时下载数据).
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []llm.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := replyOverhead
	for _, msg := range messages {
		// <|start|>role\n content<|end|>\n
		total += messageOverhead
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
