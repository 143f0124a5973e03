package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/firmretr/firmretr/config"
)

// Dialector 根据驱动名返回 GORM 方言。sqlite 使用纯 Go 实现，不依赖 cgo。
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: postgres, mysql, sqlite)", driver)
	}
}

// Open 打开数据库、应用连接池参数并迁移结果表
func Open(cfg config.DatabaseConfig, log *zap.Logger, opts ...PoolOption) (*PoolManager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}

	dialector, err := Dialector(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	poolCfg := DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.MaxIdleConns
	}
	if poolCfg.MaxIdleConns > poolCfg.MaxOpenConns {
		poolCfg.MaxIdleConns = poolCfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}

	pm, err := NewPoolManager(db, poolCfg, log, append([]PoolOption{WithName(cfg.Driver)}, opts...)...)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	if err := Migrate(db); err != nil {
		_ = pm.Close()
		return nil, err
	}

	log.Info("database connected", zap.String("driver", cfg.Driver))
	return pm, nil
}

// Migrate 创建或更新结果表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&OutcomeRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
