package llm

import (
	"errors"
	"fmt"
)

// ErrorKind 是调用失败的封闭分类，决定是否可以重试。
type ErrorKind int

const (
	KindUnknown    ErrorKind = iota // 未归类错误，不重试
	KindAuth                        // 鉴权失败 / 密钥无效
	KindBadRequest                  // 参数或格式错误
	KindTimeout                     // 请求超时
	KindRateLimit                   // 上游限流
	KindConnection                  // 网络连接失败
	KindServer                      // 上游 5xx
	KindDecode                      // 响应解析失败
	KindTruncated                   // 输出达到长度上限被截断
)

var kindNames = map[ErrorKind]string{
	KindUnknown:    "unknown",
	KindAuth:       "auth",
	KindBadRequest: "bad_request",
	KindTimeout:    "timeout",
	KindRateLimit:  "rate_limit",
	KindConnection: "connection",
	KindServer:     "server",
	KindDecode:     "decode",
	KindTruncated:  "truncated",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether re-sending the same request can plausibly succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindConnection, KindServer, KindDecode:
		return true
	default:
		return false
	}
}

// Error is the classified failure of one oracle call.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error whose retryable flag follows the kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: kind.Retryable()}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts an *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindUnknown when err is not classified.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}
