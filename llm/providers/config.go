package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxConnsPerHost 到服务商主机的空闲连接上限，通常取 worker 数
	MaxConnsPerHost int `json:"max_conns_per_host,omitempty" yaml:"max_conns_per_host,omitempty"`
}

// OpenAIConfig OpenAI 兼容 Provider 配置（OpenAI、DeepSeek、火山方舟等）
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	// ProviderName 日志与指标中使用的名称，默认 "openai"
	ProviderName string `json:"provider_name,omitempty" yaml:"provider_name,omitempty"`
	// ModelAliases 模型重定向，例如 deepseek-v3 → deepseek-chat
	ModelAliases map[string]string `json:"model_aliases,omitempty" yaml:"model_aliases,omitempty"`
}

// AnthropicConfig Claude Provider 配置
type AnthropicConfig struct {
	BaseProviderConfig `yaml:",inline"`
	// DefaultMaxTokens Messages API 必填的输出上限
	DefaultMaxTokens int `json:"default_max_tokens,omitempty" yaml:"default_max_tokens,omitempty"`
}

// DeepSeekAliases 将通用别名映射为 DeepSeek 官方模型名
var DeepSeekAliases = map[string]string{
	"deepseek-v3": "deepseek-chat",
	"deepseek-r1": "deepseek-reasoner",
}
