package claude

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/internal/tlsutil"
	"github.com/firmretr/firmretr/llm"
	"github.com/firmretr/firmretr/llm/providers"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

// Provider calls the Anthropic Messages API.
type Provider struct {
	cfg    providers.AnthropicConfig
	client anthropic.Client
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates an Anthropic provider.
func New(cfg providers.AnthropicConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(tlsutil.OracleHTTPClient(cfg.MaxConnsPerHost)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &Provider{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
		logger: logger.With(zap.String("component", "provider"), zap.String("provider", "anthropic")),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return "anthropic" }

// Completion performs a single Messages API call.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.Model, defaultModel)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(p.cfg.DefaultMaxTokens)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	system, messages := convertMessages(req.Messages)
	if len(messages) == 0 {
		return nil, llm.NewError(llm.KindBadRequest, "no user or assistant messages").WithProvider(p.Name())
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.mapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	finish := string(msg.StopReason)
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		finish = llm.FinishReasonLength
	}

	usage := llm.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	p.logger.Debug("completion received",
		zap.String("model", string(msg.Model)),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int("total_tokens", usage.TotalTokens),
	)

	return &llm.ChatResponse{
		ID:           msg.ID,
		Provider:     p.Name(),
		Model:        string(msg.Model),
		Content:      text.String(),
		FinishReason: finish,
		Usage:        usage,
	}, nil
}

func (p *Provider) mapError(err error) *llm.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return providers.MapHTTPError(apiErr.StatusCode, apiErr.Error(), p.Name()).WithCause(err)
	}
	return llm.Classify(err, p.Name())
}

// convertMessages 将 system 消息提取到独立的 system 字段
func convertMessages(msgs []llm.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, out
}
