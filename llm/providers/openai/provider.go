package openai

import (
	"context"
	"errors"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/internal/tlsutil"
	"github.com/firmretr/firmretr/llm"
	"github.com/firmretr/firmretr/llm/providers"
)

const defaultModel = "deepseek-chat"

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	cfg    providers.OpenAIConfig
	name   string
	client *goopenai.Client
	logger *zap.Logger
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// New creates an OpenAI-compatible provider. An empty BaseURL keeps the
// library default (api.openai.com).
func New(cfg providers.OpenAIConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.ProviderName
	if name == "" {
		name = "openai"
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	// Per-attempt deadlines come from the context; the client itself never times out.
	clientCfg.HTTPClient = tlsutil.OracleHTTPClient(cfg.MaxConnsPerHost)

	return &Provider{
		cfg:    cfg,
		name:   name,
		client: goopenai.NewClientWithConfig(clientCfg),
		logger: logger.With(zap.String("component", "provider"), zap.String("provider", name)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.name }

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.RedirectModel(providers.ChooseModel(req, p.cfg.Model, defaultModel), p.cfg.ModelAliases)

	body := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := p.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, p.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewError(llm.KindDecode, "empty choices in oracle response").WithProvider(p.name)
	}

	choice := resp.Choices[0]
	p.logger.Debug("completion received",
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &llm.ChatResponse{
		ID:           resp.ID,
		Provider:     p.name,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// mapError classifies go-openai errors. Status-bearing errors are checked
// before falling back to transport/decode classification.
func (p *Provider) mapError(err error) *llm.Error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return providers.MapHTTPError(apiErr.HTTPStatusCode, apiErr.Message, p.name).WithCause(err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return providers.MapHTTPError(reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)), p.name).WithCause(err)
	}
	return llm.Classify(err, p.name)
}

func convertMessages(msgs []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func normalizeFinishReason(reason goopenai.FinishReason) string {
	if reason == goopenai.FinishReasonLength {
		return llm.FinishReasonLength
	}
	return string(reason)
}
