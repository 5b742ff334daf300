// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/next-linker/internal/model"
)

// ========== EvaluationRunRepository 接口 ==========

// EvaluationRunRepository 评估任务数据访问接口
type EvaluationRunRepository interface {
	Create(ctx context.Context, run *model.EvaluationRun) error
	GetByID(ctx context.Context, id string) (*model.EvaluationRun, error)
	List(ctx context.Context, corpus string, limit, offset int) ([]*model.EvaluationRun, int64, error)
	UpdateProgress(ctx context.Context, id string, done int, status model.EvaluationRunStatus) error
	AddUnitResult(ctx context.Context, result *model.UnitResult) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, msg string) error
	Delete(ctx context.Context, id string) error
}

// 确保 evaluationRunRepositoryImpl 实现了接口
var _ EvaluationRunRepository = (*evaluationRunRepositoryImpl)(nil)
