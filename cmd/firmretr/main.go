// =============================================================================
// FirmRetr 主入口
// =============================================================================
// 批处理入口点：对数据集中每个 app 的候选请求做多轮投票分类
//
// 使用方法:
//
//	firmretr classify --dataset netgear             # 分类整个数据集
//	firmretr classify --config config.yaml          # 指定配置文件
//	firmretr classify --dataset netgear --app R7000 # 只处理指定 app
//	firmretr version                                # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/firmretr/firmretr/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "classify":
		os.Exit(runClassify(os.Args[2:]))
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🗂️ classify 命令
// =============================================================================

// classifyFlags classify 子命令参数
type classifyFlags struct {
	configPath string
	envFile    string
	dataset    string
	workers    int
	apps       []string
}

func parseClassifyFlags(args []string) (*classifyFlags, error) {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	f := &classifyFlags{}
	var apps string
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.envFile, "env", ".env", "Path to .env file (optional)")
	fs.StringVar(&f.dataset, "dataset", "", "Dataset name, overrides pipeline.dataset")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent workers, overrides scheduler.workers")
	fs.StringVar(&apps, "app", "", "Comma-separated apps to process (default: all apps in the dataset)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.apps = splitList(apps)
	return f, nil
}

func runClassify(args []string) int {
	flags, err := parseClassifyFlags(args)
	if err != nil {
		return 2
	}

	// .env 只补充尚未设置的环境变量
	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", flags.envFile, err)
		return 1
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	// 初始化日志
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting FirmRetr",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("dataset", cfg.Pipeline.Dataset),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := classifyDataset(ctx, cfg, flags.apps, logger); err != nil {
		logger.Error("classification failed", zap.Error(err))
		return 1
	}

	logger.Info("FirmRetr finished")
	return 0
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig(flags *classifyFlags) (*config.Config, error) {
	loader := config.NewLoader()
	if flags.configPath != "" {
		loader = loader.WithConfigPath(flags.configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.dataset != "" {
		cfg.Pipeline.Dataset = flags.dataset
	}
	if flags.workers > 0 {
		cfg.Scheduler.Workers = flags.workers
	}
	if cfg.Pipeline.Dataset == "" {
		return nil, fmt.Errorf("%w: dataset is required (--dataset or pipeline.dataset)", config.ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("FirmRetr %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`FirmRetr - firmware request classification by LLM voting

Usage:
  firmretr <command> [options]

Commands:
  classify  Classify the candidate requests of a dataset
  version   Show version information
  help      Show this help message

Options for 'classify':
  --config <path>   Path to configuration file (YAML)
  --env <path>      Path to .env file (default .env, optional)
  --dataset <name>  Dataset under pipeline.result_root
  --workers <n>     Number of apps processed concurrently
  --app <a,b>       Only process the listed apps

Environment:
  FIRMRETR_<SECTION>_<FIELD> overrides any config field,
  e.g. FIRMRETR_LLM_API_KEY, FIRMRETR_VOTING_MAX_ROUNDS.

Examples:
  firmretr classify --dataset netgear
  firmretr classify --config /etc/firmretr/config.yaml --workers 4
  firmretr classify --dataset netgear --app R7000,R8000
  firmretr version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          "json",
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	// 构建 logger
	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
