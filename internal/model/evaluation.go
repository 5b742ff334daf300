// Package model 提供评估相关的数据模型
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EvaluationRunStatus 评估任务状态
type EvaluationRunStatus string

const (
	EvaluationStatusPending   EvaluationRunStatus = "pending"   // 待执行
	EvaluationStatusRunning   EvaluationRunStatus = "running"   // 执行中
	EvaluationStatusCompleted EvaluationRunStatus = "completed" // 已完成
	EvaluationStatusFailed    EvaluationRunStatus = "failed"    // 失败
)

// EvaluationRun 一次消歧评估
type EvaluationRun struct {
	ID         string              `json:"id" gorm:"type:varchar(36);primaryKey"`
	Corpus     string              `json:"corpus" gorm:"type:varchar(255);index"`
	Resolver   string              `json:"resolver" gorm:"type:varchar(20)"` // rule, embedding
	Strategy   string              `json:"strategy" gorm:"type:varchar(20)"` // in_corpus, external
	MaskEntity bool                `json:"mask_entity"`
	Threshold  int                 `json:"threshold"`
	Status     EvaluationRunStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	TotalUnits int                 `json:"total_units" gorm:"default:0"`
	DoneUnits  int                 `json:"done_units" gorm:"default:0"`

	Units []UnitResult `json:"units,omitempty" gorm:"foreignKey:RunID"`

	// 错误信息
	ErrorMsg string `json:"error_msg,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (e *EvaluationRun) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (EvaluationRun) TableName() string {
	return "evaluation_runs"
}

// UnitResult 单元评估结果；未定义的指标为 nil
type UnitResult struct {
	ID          uint     `json:"-" gorm:"primaryKey"`
	RunID       string   `json:"run_id,omitempty" gorm:"type:varchar(36);index"`
	Unit        string   `json:"unit" gorm:"type:varchar(255)"`
	TP          int      `json:"tp"`
	FP          int      `json:"fp"`
	FN          int      `json:"fn"`
	Undecidable int      `json:"undecidable"`
	Precision   *float64 `json:"precision,omitempty"`
	Recall      *float64 `json:"recall,omitempty"`
	F1          *float64 `json:"f1,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
}

// TableName 指定表名
func (UnitResult) TableName() string {
	return "evaluation_unit_results"
}
