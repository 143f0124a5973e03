package pool

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ItemResult 单个条目的结果，Err 为空表示成功
type ItemResult struct {
	ID       string        `json:"id"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report 汇总一次批处理的结果。多个 worker 并发写入，由互斥锁保护。
type Report struct {
	mu      sync.Mutex
	total   int
	results []ItemResult
	errs    []string
}

func newReport(total int) *Report {
	return &Report{total: total, results: make([]ItemResult, 0, total)}
}

func (r *Report) record(id string, err error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := ItemResult{ID: id, Duration: d}
	if err != nil {
		res.Err = err.Error()
		r.errs = append(r.errs, fmt.Sprintf("Error processing %s: %s", id, res.Err))
	}
	r.results = append(r.results, res)
}

// Total 返回提交的条目数
func (r *Report) Total() int { return r.total }

// Completed 返回已完成（成功或失败）的条目数
func (r *Report) Completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// Failed 返回失败的条目数
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// Results 按完成顺序返回每个条目的结果
func (r *Report) Results() []ItemResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ItemResult, len(r.results))
	copy(out, r.results)
	return out
}

// Errors 按完成顺序返回错误信息
func (r *Report) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.errs))
	copy(out, r.errs)
	return out
}

// WriteTo 写出错误报告：首行为错误总数，随后每行一个错误
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	errs := r.Errors()
	bw := bufio.NewWriter(w)
	var n int64

	c, err := fmt.Fprintf(bw, "Summary of Errors(total %d):\n", len(errs))
	n += int64(c)
	if err != nil {
		return n, err
	}
	for _, e := range errs {
		c, err = fmt.Fprintln(bw, e)
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// WriteFile 将错误报告写入 path，必要时创建目录
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
