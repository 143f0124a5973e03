package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Recorder 以读-改-写的方式合并每个条目的统计 JSON 文档。
// 同一路径上的写入串行执行，不同路径互不阻塞。
type Recorder struct {
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRecorder 创建统计记录器
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logger: logger.With(zap.String("component", "stats")),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Record 设置 path 文档中的 key，保留其他字段
func (r *Recorder) Record(path, key string, value any) error {
	return r.update(path, func(doc map[string]any) { doc[key] = value })
}

// RecordTime 写入 "<phase>_times"（秒）
func (r *Recorder) RecordTime(path, phase string, seconds float64) error {
	return r.Record(path, phase+"_times", seconds)
}

// RecordUsage 写入 "<phase>_tokens"
func (r *Recorder) RecordUsage(path, phase string, tokens int) error {
	return r.Record(path, phase+"_tokens", tokens)
}

// Reset 将文档重置为 {}
func (r *Recorder) Reset(path string) error {
	lock := r.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	return WriteJSON(path, map[string]any{})
}

// Load 读取文档。文件不存在时返回空文档；内容损坏时记录警告并返回空文档。
func (r *Recorder) Load(path string) (map[string]any, error) {
	lock := r.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	return r.load(path)
}

func (r *Recorder) update(path string, mutate func(map[string]any)) error {
	lock := r.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	doc, err := r.load(path)
	if err != nil {
		return err
	}
	mutate(doc)
	return WriteJSON(path, doc)
}

func (r *Recorder) load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read stats %s: %w", path, err)
	}

	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		r.logger.Warn("stats file is not a JSON object, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return map[string]any{}, nil
	}
	return doc, nil
}

func (r *Recorder) lockFor(path string) *sync.Mutex {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// WriteJSON 以 4 空格缩进、不转义非 ASCII 与 HTML 字符的格式写入 v。
// 先写临时文件再 rename，读者不会看到写了一半的文件。父目录不存在时自动创建。
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	success = true
	return nil
}
