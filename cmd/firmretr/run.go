package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/classify"
	"github.com/firmretr/firmretr/config"
	"github.com/firmretr/firmretr/internal/ctxkeys"
	"github.com/firmretr/firmretr/internal/database"
	"github.com/firmretr/firmretr/internal/metrics"
	"github.com/firmretr/firmretr/internal/pool"
	"github.com/firmretr/firmretr/internal/seen"
	"github.com/firmretr/firmretr/internal/server"
	"github.com/firmretr/firmretr/internal/telemetry"
	"github.com/firmretr/firmretr/llm"
	"github.com/firmretr/firmretr/llm/providers"
	claude "github.com/firmretr/firmretr/llm/providers/anthropic"
	"github.com/firmretr/firmretr/llm/providers/openai"
	"github.com/firmretr/firmretr/llm/tokenizer"
	"github.com/firmretr/firmretr/voting"
)

// classifyDataset 组装全部组件并运行一次批处理
func classifyDataset(ctx context.Context, cfg *config.Config, apps []string, logger *zap.Logger) error {
	runID := uuid.NewString()
	ctx = ctxkeys.WithRunID(ctx, runID)
	logger = logger.With(zap.String("run_id", runID))

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger, telemetry.WithVersion(Version))
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		defer func() { _ = otelProviders.Shutdown(context.Background()) }()
	}

	collector := metrics.NewCollector(cfg.Metrics.Namespace, logger)
	if cfg.Metrics.Addr != "" {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		ops := server.NewManager(server.NewHandler(prometheus.DefaultGatherer), srvCfg, logger)
		if err := ops.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = ops.Shutdown(context.Background()) }()
	}

	provider, err := newProvider(cfg.LLM, cfg.Scheduler.Workers, logger)
	if err != nil {
		return err
	}
	client := llm.NewClient(provider, llm.ClientConfig{
		Policy:         cfg.Retry.Policy(),
		DefaultTimeout: cfg.LLM.Timeout,
		MaxInputTokens: cfg.LLM.MaxInputTokens,
	},
		llm.WithTokenCounter(tokenizer.NewCounter(cfg.LLM.Model, logger)),
		llm.WithRecorder(collector),
		llm.WithLogger(logger),
	)

	engine, err := voting.NewEngine(client, cfg.Voting.Engine(),
		voting.WithRecorder(collector),
		voting.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	prompt, err := classify.LoadPrompt(cfg.Pipeline.PromptPath)
	if err != nil {
		return err
	}

	opts := []classify.Option{classify.WithLogger(logger)}

	set, closeSet, err := openSeenSet(cfg.Redis, collector, logger)
	if err != nil {
		return err
	}
	defer closeSet()
	opts = append(opts, classify.WithSeenSet(set))

	if cfg.Database.Enabled {
		pm, err := database.Open(cfg.Database, logger, database.WithRecorder(collector))
		if err != nil {
			return err
		}
		defer func() { _ = pm.Close() }()
		opts = append(opts, classify.WithOutcomeStore(database.NewOutcomeRepository(pm, logger)))
	}

	pipeline, err := classify.NewPipeline(classify.Config{
		ResultRoot:  cfg.Pipeline.ResultRoot,
		Dataset:     cfg.Pipeline.Dataset,
		StatsFile:   cfg.Pipeline.StatsFile,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, engine, prompt, opts...)
	if err != nil {
		return err
	}

	scheduler := pool.NewScheduler(cfg.Scheduler.Pool(),
		pool.WithLogger(logger),
		pool.WithRecorder(collector),
		pool.WithProgress(func(done, total int, id string, err error) {
			logger.Info("app done",
				zap.String("app", id),
				zap.Int("done", done),
				zap.Int("total", total),
				zap.Bool("failed", err != nil),
			)
		}),
	)

	start := time.Now()
	report, err := classify.NewBatch(pipeline, scheduler, cfg.Pipeline.ErrorLogDir, logger).Run(ctx, apps...)
	if err != nil {
		return err
	}
	logger.Info("dataset classified",
		zap.String("dataset", cfg.Pipeline.Dataset),
		zap.Int("apps", report.Total()),
		zap.Int("failed", report.Failed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d apps failed", report.Failed(), report.Total())
	}
	return nil
}

// newProvider 按 llm.provider 选择服务商
func newProvider(cfg config.LLMConfig, workers int, logger *zap.Logger) (llm.Provider, error) {
	base := providers.BaseProviderConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		Timeout:         cfg.Timeout,
		MaxConnsPerHost: workers,
	}
	switch cfg.Provider {
	case "deepseek":
		return openai.New(providers.OpenAIConfig{
			BaseProviderConfig: base,
			ProviderName:       "deepseek",
			ModelAliases:       providers.DeepSeekAliases,
		}, logger), nil
	case "openai":
		return openai.New(providers.OpenAIConfig{BaseProviderConfig: base}, logger), nil
	case "anthropic":
		return claude.New(providers.AnthropicConfig{
			BaseProviderConfig: base,
			DefaultMaxTokens:   cfg.MaxTokens,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}

// openSeenSet 启用 Redis 时返回跨运行共享的集合，否则返回进程内集合
func openSeenSet(cfg config.RedisConfig, rec seen.Recorder, logger *zap.Logger) (seen.Set, func(), error) {
	if !cfg.Enabled {
		return seen.NewMemorySet(), func() {}, nil
	}
	set, err := seen.NewRedisSet(seen.RedisConfig{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		Key:          cfg.SeenKey,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	set.WithRecorder(rec)
	return set, func() { _ = set.Close() }, nil
}
