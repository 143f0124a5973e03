package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/firmretr/firmretr/config"
	"github.com/firmretr/firmretr/internal/seen"
	"github.com/firmretr/firmretr/testutil"
)

func TestParseClassifyFlags(t *testing.T) {
	f, err := parseClassifyFlags([]string{
		"--config", "c.yaml", "--dataset", "netgear", "--workers", "3", "--app", "R7000, R8000,,",
	})
	require.NoError(t, err)
	assert.Equal(t, "c.yaml", f.configPath)
	assert.Equal(t, ".env", f.envFile)
	assert.Equal(t, "netgear", f.dataset)
	assert.Equal(t, 3, f.workers)
	assert.Equal(t, []string{"R7000", "R8000"}, f.apps)

	f, err = parseClassifyFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, f.apps)

	_, err = parseClassifyFlags([]string{"--workers", "many"})
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  dataset: tplink\nscheduler:\n  workers: 2\n"), 0o644))

	cfg, err := loadConfig(&classifyFlags{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "tplink", cfg.Pipeline.Dataset)
	assert.Equal(t, 2, cfg.Scheduler.Workers)

	cfg, err = loadConfig(&classifyFlags{configPath: path, dataset: "netgear", workers: 8})
	require.NoError(t, err)
	assert.Equal(t, "netgear", cfg.Pipeline.Dataset)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
}

func TestLoadConfig_DatasetRequired(t *testing.T) {
	_, err := loadConfig(&classifyFlags{})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("FIRMRETR_LLM_PROVIDER", "gemini")
	_, err := loadConfig(&classifyFlags{dataset: "netgear"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"deepseek", "deepseek", false},
		{"openai", "openai", false},
		{"anthropic", "anthropic", false},
		{"gemini", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := newProvider(config.LLMConfig{Provider: tt.provider, APIKey: "sk-test"}, 2, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestOpenSeenSet(t *testing.T) {
	set, closeFn, err := openSeenSet(config.RedisConfig{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &seen.MemorySet{}, set)
	closeFn()

	mr := miniredis.RunT(t)
	set, closeFn, err = openSeenSet(config.RedisConfig{Enabled: true, Addr: mr.Addr(), SeenKey: "k"}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer closeFn()
	added, err := set.Add(context.Background(), "R7000")
	require.NoError(t, err)
	assert.True(t, added)
	ok, err := mr.SIsMember("k", "R7000")
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = openSeenSet(config.RedisConfig{Enabled: true, Addr: mr.Addr()}, nil, zap.NewNop())
	assert.Error(t, err, "empty key is rejected")
}

func TestInitLogger(t *testing.T) {
	logger := initLogger(config.LogConfig{Level: "warn", Format: "json", OutputPaths: []string{"stderr"}})
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger = initLogger(config.LogConfig{Level: "bogus", Format: "console"})
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,b,"))
}

// fakeOracle 是一个 OpenAI 兼容的 /chat/completions 端点
type fakeOracle struct {
	mu     sync.Mutex
	models []string
	calls  int
}

func (f *fakeOracle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.calls++
	f.models = append(f.models, req.Model)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "deepseek-chat",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "2"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 40, "completion_tokens": 1, "total_tokens": 41}
	}`))
}

func TestClassifyDataset_EndToEnd(t *testing.T) {
	oracle := &fakeOracle{}
	srv := httptest.NewServer(oracle)
	defer srv.Close()

	root := t.TempDir()
	record := map[string]any{"method": "POST", "url": "/goform/setWan"}
	testutil.WriteJSONFile(t, filepath.Join(root, "results", "netgear", "R7000", "llm_phase1", "urls.json"),
		map[string]any{"/goform/setWan": record, "/index.htm": "0"})
	promptPath := filepath.Join(root, "phase2.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("Classify the request."), 0o644))

	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = srv.URL + "/v1"
	cfg.LLM.MaxInputTokens = 0
	cfg.Voting.RoundInterval = 0
	cfg.Scheduler.PacingMax = 0
	cfg.Pipeline.ResultRoot = filepath.Join(root, "results")
	cfg.Pipeline.Dataset = "netgear"
	cfg.Pipeline.PromptPath = promptPath
	cfg.Pipeline.ErrorLogDir = filepath.Join(root, "logs")
	cfg.Database.Enabled = true
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(root, "firmretr.db")
	cfg.Metrics.Addr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, classifyDataset(ctx, cfg, nil, zaptest.NewLogger(t)))

	appDir := filepath.Join(root, "results", "netgear", "R7000")
	testutil.AssertJSONFileEqual(t, map[string]any{"/goform/setWan": record},
		filepath.Join(appDir, "llm_phase2", "incomplete_2_R7000.json"))

	// 5 轮一致即达成共识；模型名按 DeepSeek 别名重定向
	assert.Equal(t, 5, oracle.calls)
	for _, m := range oracle.models {
		assert.Equal(t, "deepseek-chat", m)
	}

	stats := testutil.ReadJSONFile[map[string]float64](t, filepath.Join(appDir, "firmproj_stats.json"))
	assert.Equal(t, float64(5*41), stats["llm_phase2_usage_tokens"])
	assert.NoFileExists(t, filepath.Join(root, "logs", "error_netgear.log"))
	assert.FileExists(t, cfg.Database.Name)
}
