package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/firmretr/firmretr/voting"
)

// OutcomeRecord 一次投票会话的持久化结果
type OutcomeRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SessionID    string         `gorm:"size:36;uniqueIndex" json:"session_id"`
	Dataset      string         `gorm:"size:128;index:idx_outcome_app" json:"dataset"`
	App          string         `gorm:"size:255;index:idx_outcome_app" json:"app"`
	RecordKey    string         `gorm:"size:1024" json:"record_key"`
	Label        string         `gorm:"size:32" json:"label"`
	Consistency  float64        `json:"consistency"`
	Entropy      float64        `json:"entropy"`
	Distribution map[string]int `gorm:"serializer:json" json:"distribution"`
	Rounds       int            `json:"rounds"`
	Failures     int            `json:"failures"`
	Termination  string         `gorm:"size:32" json:"termination"`
	TotalTokens  int            `json:"total_tokens"`
	ElapsedMs    int64          `json:"elapsed_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName 表名
func (OutcomeRecord) TableName() string { return "vote_outcomes" }

// NewOutcomeRecord 由投票结果构造记录
func NewOutcomeRecord(dataset, app, key string, o *voting.Outcome) OutcomeRecord {
	return OutcomeRecord{
		SessionID:    o.SessionID,
		Dataset:      dataset,
		App:          app,
		RecordKey:    key,
		Label:        o.Label,
		Consistency:  o.Consistency,
		Entropy:      o.Entropy,
		Distribution: o.Distribution,
		Rounds:       o.Rounds,
		Failures:     o.Failures,
		Termination:  o.Termination.String(),
		TotalTokens:  o.Usage.TotalTokens,
		ElapsedMs:    o.Elapsed.Milliseconds(),
	}
}

// OutcomeRepository 投票结果仓储
type OutcomeRepository struct {
	pool   *PoolManager
	logger *zap.Logger
}

// NewOutcomeRepository 创建仓储
func NewOutcomeRepository(pool *PoolManager, logger *zap.Logger) *OutcomeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeRepository{
		pool:   pool,
		logger: logger.With(zap.String("component", "outcome_repo")),
	}
}

// Save 保存一条记录。SessionID 重复时忽略，重跑同一会话不会产生重复行。
func (r *OutcomeRepository) Save(ctx context.Context, rec OutcomeRecord) error {
	return r.SaveBatch(ctx, []OutcomeRecord{rec})
}

// SaveBatch 在一个事务中保存多条记录
func (r *OutcomeRepository) SaveBatch(ctx context.Context, recs []OutcomeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	defer r.pool.observe("insert", time.Now())

	err := r.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).Create(&recs).Error
	})
	if err != nil {
		r.logger.Error("save outcomes failed", zap.Int("count", len(recs)), zap.Error(err))
		return fmt.Errorf("save outcomes: %w", err)
	}
	return nil
}

// ListByApp 按创建顺序返回某个 app 的全部记录
func (r *OutcomeRepository) ListByApp(ctx context.Context, dataset, app string) ([]OutcomeRecord, error) {
	defer r.pool.observe("select", time.Now())

	var recs []OutcomeRecord
	err := r.pool.DB().WithContext(ctx).
		Where("dataset = ? AND app = ?", dataset, app).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return recs, nil
}

// CountByLabel 统计某个 app 各标签的记录数
func (r *OutcomeRepository) CountByLabel(ctx context.Context, dataset, app string) (map[string]int, error) {
	defer r.pool.observe("select", time.Now())

	var rows []struct {
		Label string
		N     int
	}
	err := r.pool.DB().WithContext(ctx).
		Model(&OutcomeRecord{}).
		Select("label, COUNT(*) AS n").
		Where("dataset = ? AND app = ?", dataset, app).
		Group("label").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Label] = row.N
	}
	return out, nil
}
