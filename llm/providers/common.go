package providers

import (
	"net/http"
	"strings"

	"github.com/firmretr/firmretr/llm"
)

// MapHTTPError 将 HTTP 状态码映射为对应分类的 llm.Error
// 这是所有提供者使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	var kind llm.ErrorKind
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = llm.KindAuth
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		kind = llm.KindTimeout
	case status == http.StatusTooManyRequests:
		kind = llm.KindRateLimit
	case status == 529: // Model overloaded (used by some providers)
		kind = llm.KindServer
	case status >= 500:
		kind = llm.KindServer
	case status >= 400:
		kind = llm.KindBadRequest
	default:
		kind = llm.KindUnknown
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return llm.NewError(kind, msg).WithHTTPStatus(status).WithProvider(provider)
}

// RedirectModel 将通用模型别名映射为供应商的真实模型名
func RedirectModel(model string, aliases map[string]string) string {
	if aliases == nil {
		return model
	}
	if target, ok := aliases[strings.ToLower(strings.TrimSpace(model))]; ok {
		return target
	}
	return model
}

// ChooseModel 根据请求和默认值选择模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}
