// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.WriteJSONFile(t, path, map[string]any{"/a": "req"})
//	testutil.AssertJSONFileEqual(t, map[string]any{"/a": "req"}, path)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NoSleep 立即返回的等待函数，用于关闭重试退避与调度节流
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertJSONFileEqual 断言文件内容与 expected 的 JSON 语义相等
func AssertJSONFileEqual(t *testing.T, expected any, path string) {
	t.Helper()
	got := ReadJSONFile[any](t, path)
	want := MustParseJSON[any](MustJSON(expected))
	if MustJSON(got) != MustJSON(want) {
		t.Errorf("%s: JSON mismatch\nexpected: %s\nactual:   %s", path, MustJSON(want), MustJSON(got))
	}
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// WriteJSONFile 将 v 写入 path，必要时创建目录
func WriteJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(MustJSON(v)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadJSONFile 读取并解析 path
func ReadJSONFile[T any](t *testing.T, path string) T {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return v
}
