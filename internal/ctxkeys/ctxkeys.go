// Package ctxkeys 定义跨包传递的 context 键：一次批处理的 RunID 与当前处理的 app。
package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	runIDKey contextKey = "run_id"
	appKey   contextKey = "app"
)

// WithRunID 设置 RunID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取 RunID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithApp 设置当前处理的 app
func WithApp(ctx context.Context, app string) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// App 获取当前处理的 app
func App(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(appKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Fields 返回 ctx 中已设置的键，用于日志
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if v, ok := RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", v))
	}
	if v, ok := App(ctx); ok {
		fields = append(fields, zap.String("app", v))
	}
	return fields
}
