package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/firmretr/firmretr/internal/ctxkeys"
	"github.com/firmretr/firmretr/internal/database"
	"github.com/firmretr/firmretr/internal/seen"
	"github.com/firmretr/firmretr/internal/stats"
	"github.com/firmretr/firmretr/llm"
	"github.com/firmretr/firmretr/voting"
)

const (
	inputDirName  = "llm_phase1"
	outputDirName = "llm_phase2"

	// 跳过的占位值
	skipValue = "0"
)

// 统计文档中的阶段名
const (
	phaseChat  = "llm_phase2_chat"
	phaseUsage = "llm_phase2_usage"
	phaseWall  = "phase2"
)

// Buckets 标签到输出文件前缀的映射：0 为完整请求，1-3 为不完整请求
var Buckets = []struct {
	Label  string
	Prefix string
}{
	{"0", "complete_0"},
	{"1", "incomplete_1"},
	{"2", "incomplete_2"},
	{"3", "incomplete_3"},
}

// Classifier 对单个请求做投票分类，voting.Engine 实现了它
type Classifier interface {
	Classify(ctx context.Context, req *llm.ChatRequest) (*voting.Outcome, error)
}

// OutcomeStore 持久化投票结果，database.OutcomeRepository 实现了它
type OutcomeStore interface {
	SaveBatch(ctx context.Context, recs []database.OutcomeRecord) error
}

// Config 流水线配置
type Config struct {
	// 结果根目录，app 目录位于 <ResultRoot>/<Dataset>/<app>
	ResultRoot string `json:"result_root" yaml:"result_root"`
	Dataset    string `json:"dataset" yaml:"dataset"`
	// 每个 app 目录下的统计文件名
	StatsFile string `json:"stats_file" yaml:"stats_file"`

	// 每次预言机调用的参数
	Model       string        `json:"model" yaml:"model"`
	Temperature float32       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
}

// AppResult 单个 app 的处理摘要
type AppResult struct {
	App         string         `json:"app"`
	AlreadySeen bool           `json:"already_seen"`
	Records     int            `json:"records"`
	Skipped     int            `json:"skipped"`
	NoResult    int            `json:"no_result"`
	Malformed   int            `json:"malformed"`
	Counts      map[string]int `json:"counts"`
	ChatTime    time.Duration  `json:"chat_time"`
	Tokens      int            `json:"tokens"`
	WallTime    time.Duration  `json:"wall_time"`
}

// Pipeline 第二阶段 URL 分类：读取 llm_phase1 的候选请求，
// 对每条请求投票分类，按标签写入 llm_phase2 并更新统计文档。
type Pipeline struct {
	cfg        Config
	classifier Classifier
	prompt     string
	stats      *stats.Recorder
	seen       seen.Set
	store      OutcomeStore
	logger     *zap.Logger
}

// Option 配置 Pipeline
type Option func(*Pipeline)

// WithSeenSet 跳过已处理的 app，处理成功后将其加入集合
func WithSeenSet(s seen.Set) Option {
	return func(p *Pipeline) { p.seen = s }
}

// WithOutcomeStore 持久化每条投票结果
func WithOutcomeStore(s OutcomeStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithStatsRecorder 共享统计记录器，多个流水线写同一文件时需要
func WithStatsRecorder(r *stats.Recorder) Option {
	return func(p *Pipeline) { p.stats = r }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline 创建流水线
func NewPipeline(cfg Config, classifier Classifier, prompt string, opts ...Option) (*Pipeline, error) {
	if classifier == nil {
		return nil, errors.New("classify: nil classifier")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if cfg.Dataset == "" {
		return nil, errors.New("classify: dataset is required")
	}
	if cfg.StatsFile == "" {
		cfg.StatsFile = "firmproj_stats.json"
	}

	p := &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		prompt:     prompt,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stats == nil {
		p.stats = stats.NewRecorder(p.logger)
	}
	p.logger = p.logger.With(zap.String("component", "classify"), zap.String("dataset", cfg.Dataset))
	return p, nil
}

// AppDir 返回 app 的结果目录
func (p *Pipeline) AppDir(app string) string {
	return filepath.Join(p.cfg.ResultRoot, p.cfg.Dataset, app)
}

// ProcessApp 处理一个 app，可被多个 worker 并发调用
func (p *Pipeline) ProcessApp(ctx context.Context, app string) error {
	_, err := p.Process(ctx, app)
	return err
}

// Process 处理一个 app 并返回摘要。没有输入文件时只创建输出目录，不写结果与统计。
func (p *Pipeline) Process(ctx context.Context, app string) (*AppResult, error) {
	start := time.Now()
	ctx = ctxkeys.WithApp(ctx, app)
	logger := p.logger.With(ctxkeys.Fields(ctx)...)
	res := &AppResult{App: app, Counts: map[string]int{}}

	if p.seen != nil {
		done, err := p.seen.Contains(ctx, app)
		if err != nil {
			return nil, fmt.Errorf("check seen set: %w", err)
		}
		if done {
			logger.Info("app already processed, skip")
			res.AlreadySeen = true
			return res, nil
		}
	}

	logger.Info("start processing app")

	appDir := p.AppDir(app)
	outDir := filepath.Join(appDir, outputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files, err := inputFiles(filepath.Join(appDir, inputDirName))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Info("no json file found, skip")
		return res, nil
	}
	logger.Debug("input files", zap.Strings("files", files))

	records, err := mergeRecords(files)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make(map[string]map[string]json.RawMessage, len(Buckets))
	for _, b := range Buckets {
		buckets[b.Label] = map[string]json.RawMessage{}
	}
	var persisted []database.OutcomeRecord

	for i, key := range keys {
		value := records[key]
		if isSkipValue(value) {
			res.Skipped++
			continue
		}
		res.Records++

		content, err := compactJSON(value)
		if err != nil {
			return nil, fmt.Errorf("encode record %q: %w", key, err)
		}
		logger.Debug("classifying record",
			zap.Int("index", i+1),
			zap.Int("total", len(keys)),
			zap.String("key", key),
		)

		outcome, err := p.classifier.Classify(ctx, p.request(content))
		if err != nil {
			if errors.Is(err, voting.ErrNoResult) {
				logger.Error("record has no result, skip", zap.String("key", key), zap.Error(err))
				res.NoResult++
				continue
			}
			return nil, fmt.Errorf("classify %q: %w", key, err)
		}

		res.Tokens += outcome.Usage.TotalTokens
		res.ChatTime += outcome.Elapsed
		logger.Info("record classified",
			zap.String("key", key),
			zap.String("label", outcome.Label),
			zap.Float64("consistency", outcome.Consistency),
			zap.Int("tokens", outcome.Usage.TotalTokens),
			zap.Duration("elapsed", outcome.Elapsed),
		)

		if p.store != nil {
			persisted = append(persisted, database.NewOutcomeRecord(p.cfg.Dataset, app, key, outcome))
		}

		bucket, ok := buckets[outcome.Label]
		if !ok {
			logger.Warn("oracle label outside the known buckets, dropped",
				zap.String("key", key),
				zap.String("label", outcome.Label),
			)
			res.Malformed++
			continue
		}
		bucket[key] = value
		res.Counts[outcome.Label]++
	}

	for _, b := range Buckets {
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s.json", b.Prefix, app))
		if err := stats.WriteJSON(path, buckets[b.Label]); err != nil {
			return nil, err
		}
		logger.Debug("bucket written", zap.String("path", path), zap.Int("records", len(buckets[b.Label])))
	}

	statsPath := filepath.Join(appDir, p.cfg.StatsFile)
	if err := p.stats.RecordTime(statsPath, phaseChat, res.ChatTime.Seconds()); err != nil {
		return nil, err
	}
	if err := p.stats.RecordUsage(statsPath, phaseUsage, res.Tokens); err != nil {
		return nil, err
	}

	if len(persisted) > 0 {
		if err := p.store.SaveBatch(ctx, persisted); err != nil {
			return nil, fmt.Errorf("persist outcomes: %w", err)
		}
	}

	res.WallTime = time.Since(start)
	if err := p.stats.RecordTime(statsPath, phaseWall, res.WallTime.Seconds()); err != nil {
		return nil, err
	}

	if p.seen != nil {
		if _, err := p.seen.Add(ctx, app); err != nil {
			logger.Warn("failed to mark app as processed", zap.Error(err))
		}
	}

	logger.Info("app processed",
		zap.Int("records", res.Records),
		zap.Int("skipped", res.Skipped),
		zap.Int("no_result", res.NoResult),
		zap.Int("malformed", res.Malformed),
		zap.Any("counts", res.Counts),
		zap.Int("tokens", res.Tokens),
		zap.Duration("chat_time", res.ChatTime),
		zap.Duration("wall_time", res.WallTime),
	)
	return res, nil
}

func (p *Pipeline) request(content string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model: p.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: p.prompt},
			{Role: llm.RoleUser, Content: content},
		},
		Temperature: p.cfg.Temperature,
		Timeout:     p.cfg.Timeout,
		MaxTokens:   p.cfg.MaxTokens,
	}
}

// inputFiles 返回目录下按文件名排序的 *.json，目录不存在视为没有文件
func inputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// mergeRecords 合并所有文件的顶层对象，后读到的文件覆盖同名 key
func mergeRecords(files []string) (map[string]json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		for k, v := range obj {
			merged[k] = v
		}
	}
	return merged, nil
}

func isSkipValue(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == skipValue
}

func compactJSON(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
