// Package database 评估任务库的 Postgres 连接
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/next-linker/internal/config"
	"github.com/ashwinyue/next-linker/internal/model"
)

// ErrDisabled 配置中未启用数据库
var ErrDisabled = errors.New("database is disabled")

// interruptedMessage 上次进程退出时仍未结束的任务
const interruptedMessage = "interrupted: server stopped before the run finished"

// DB 评估任务库
type DB struct {
	*gorm.DB
}

// Open 连接评估任务库，迁移表结构，并把上次进程遗留的未完成任务标记为失败
func Open(ctx context.Context, cfg config.DatabaseConfig, debug bool) (*DB, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), gormConfig(debug))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	pool := newPoolSettings(cfg)
	sqlDB.SetMaxOpenConns(pool.maxOpen)
	sqlDB.SetMaxIdleConns(pool.maxIdle)
	sqlDB.SetConnMaxLifetime(pool.lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(model.AllModels...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	n, err := failInterrupted(ctx, db)
	if err != nil {
		log.Printf("Warning: failed to mark interrupted runs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d interrupted evaluation runs as failed", n)
	}

	return &DB{DB: db}, nil
}

// Close 关闭连接池
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormConfig(debug bool) *gorm.Config {
	level := gormlogger.Silent
	if debug {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}
}

// poolSettings 连接池参数；空闲连接不多于最大连接
type poolSettings struct {
	maxOpen  int
	maxIdle  int
	lifetime time.Duration
}

func newPoolSettings(cfg config.DatabaseConfig) poolSettings {
	p := poolSettings{
		maxOpen:  cfg.MaxOpenConns,
		maxIdle:  cfg.MaxIdleConns,
		lifetime: time.Duration(cfg.MaxLifetime) * time.Second,
	}
	if p.maxOpen <= 0 {
		p.maxOpen = 25
	}
	if p.maxIdle < 0 {
		p.maxIdle = 0
	}
	if p.maxIdle > p.maxOpen {
		p.maxIdle = p.maxOpen
	}
	return p
}

// failInterrupted 后台任务随进程退出而中断，重启后不会恢复
func failInterrupted(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).
		Model(&model.EvaluationRun{}).
		Where("status IN ?", []model.EvaluationRunStatus{model.EvaluationStatusPending, model.EvaluationStatusRunning}).
		Updates(map[string]interface{}{
			"status":    model.EvaluationStatusFailed,
			"error_msg": interruptedMessage,
		})
	return res.RowsAffected, res.Error
}
