// Package repository 数据访问层
package repository

import (
	"context"
	"time"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// evaluationRunRepositoryImpl 评估任务仓库
type evaluationRunRepositoryImpl struct {
	db *gorm.DB
}

// NewEvaluationRunRepository 创建评估任务仓库
func NewEvaluationRunRepository(db *gorm.DB) EvaluationRunRepository {
	return &evaluationRunRepositoryImpl{db: db}
}

// Create 创建评估任务
func (r *evaluationRunRepositoryImpl) Create(ctx context.Context, run *model.EvaluationRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID 根据 ID 获取评估任务及其单元结果
func (r *evaluationRunRepositoryImpl) GetByID(ctx context.Context, id string) (*model.EvaluationRun, error) {
	var run model.EvaluationRun
	err := r.db.WithContext(ctx).
		Preload("Units", func(db *gorm.DB) *gorm.DB { return db.Order("unit ASC") }).
		Where("id = ?", id).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List 列出评估任务（支持按语料筛选和分页）
func (r *evaluationRunRepositoryImpl) List(ctx context.Context, corpus string, limit, offset int) ([]*model.EvaluationRun, int64, error) {
	var runs []*model.EvaluationRun
	var total int64

	query := r.db.WithContext(ctx).Model(&model.EvaluationRun{})
	if corpus != "" {
		query = query.Where("corpus = ?", corpus)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&runs).Error
	return runs, total, err
}

// UpdateProgress 更新任务进度
func (r *evaluationRunRepositoryImpl) UpdateProgress(ctx context.Context, id string, done int, status model.EvaluationRunStatus) error {
	return r.db.WithContext(ctx).Model(&model.EvaluationRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"done_units": done,
		"status":     status,
	}).Error
}

// AddUnitResult 保存一个单元的结果
func (r *evaluationRunRepositoryImpl) AddUnitResult(ctx context.Context, result *model.UnitResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// Complete 标记任务完成
func (r *evaluationRunRepositoryImpl) Complete(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.EvaluationRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.EvaluationStatusCompleted,
		"completed_at": &now,
	}).Error
}

// Fail 标记任务失败
func (r *evaluationRunRepositoryImpl) Fail(ctx context.Context, id string, msg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.EvaluationRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.EvaluationStatusFailed,
		"error_msg":    msg,
		"completed_at": &now,
	}).Error
}

// Delete 删除评估任务及其单元结果
func (r *evaluationRunRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&model.UnitResult{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.EvaluationRun{}, "id = ?", id).Error
	})
}
