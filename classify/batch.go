package classify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/firmretr/firmretr/internal/pool"
)

// Batch 在数据集的所有 app 上运行流水线
type Batch struct {
	pipeline    *Pipeline
	scheduler   *pool.Scheduler
	errorLogDir string
	logger      *zap.Logger
}

// NewBatch 创建批处理。errorLogDir 为空时不写错误报告文件。
func NewBatch(p *Pipeline, s *pool.Scheduler, errorLogDir string, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{
		pipeline:    p,
		scheduler:   s,
		errorLogDir: errorLogDir,
		logger:      logger.With(zap.String("component", "batch"), zap.String("dataset", p.cfg.Dataset)),
	}
}

// Apps 列出数据集目录下的 app（子目录），按名称排序
func (b *Batch) Apps() ([]string, error) {
	root := filepath.Join(b.pipeline.cfg.ResultRoot, b.pipeline.cfg.Dataset)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	var apps []string
	for _, e := range entries {
		if e.IsDir() {
			apps = append(apps, e.Name())
		}
	}
	sort.Strings(apps)
	return apps, nil
}

// ErrorLogPath 返回错误报告路径 <errorLogDir>/error_<dataset>.log
func (b *Batch) ErrorLogPath() string {
	if b.errorLogDir == "" {
		return ""
	}
	return filepath.Join(b.errorLogDir, fmt.Sprintf("error_%s.log", b.pipeline.cfg.Dataset))
}

// Run 处理 apps；apps 为空时处理数据集下的全部 app。
// 单个 app 的失败只记录在报告中；有失败时写出错误报告。
func (b *Batch) Run(ctx context.Context, apps ...string) (*pool.Report, error) {
	if len(apps) == 0 {
		var err error
		apps, err = b.Apps()
		if err != nil {
			return nil, err
		}
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", b.pipeline.cfg.Dataset, pool.ErrNoItems)
	}

	b.logger.Info("batch started", zap.Int("apps", len(apps)))
	report := b.scheduler.Run(ctx, apps, b.pipeline.ProcessApp)

	b.logger.Info("batch finished",
		zap.Int("total", report.Total()),
		zap.Int("completed", report.Completed()),
		zap.Int("failed", report.Failed()),
	)

	if report.Failed() > 0 {
		if path := b.ErrorLogPath(); path != "" {
			if err := report.WriteFile(path); err != nil {
				return report, fmt.Errorf("write error report: %w", err)
			}
			b.logger.Warn("error report written", zap.String("path", path), zap.Int("errors", report.Failed()))
		}
	}
	return report, ctx.Err()
}
