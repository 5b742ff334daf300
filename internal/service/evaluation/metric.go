// Package evaluation 提供消歧评估服务
package evaluation

import (
	"errors"
	"fmt"
)

// ErrDegenerateMetric 分母为零，指标在该单元上未定义
var ErrDegenerateMetric = errors.New("degenerate metric: zero denominator")

// Counts 一个评估单元的判定计数
type Counts struct {
	TP          int `json:"tp"`
	FP          int `json:"fp"`
	FN          int `json:"fn"`
	Undecidable int `json:"undecidable"`
}

// Add 累加另一组计数
func (c *Counts) Add(o Counts) {
	c.TP += o.TP
	c.FP += o.FP
	c.FN += o.FN
	c.Undecidable += o.Undecidable
}

// Total 所有提及数
func (c Counts) Total() int {
	return c.TP + c.FP + c.FN + c.Undecidable
}

// Metric 指标接口
type Metric interface {
	Compute(c Counts) (float64, error)
	Name() string
}

// ratio 计算比值，分母为零时返回 ErrDegenerateMetric
func ratio(name string, num, den int) (float64, error) {
	if den == 0 {
		return 0, fmt.Errorf("%s: %w", name, ErrDegenerateMetric)
	}
	return float64(num) / float64(den), nil
}

// ========== Precision 精确率 ==========

// PrecisionMetric 精确率指标
// Precision = tp / (tp + fp)
type PrecisionMetric struct{}

// NewPrecisionMetric 创建精确率指标
func NewPrecisionMetric() *PrecisionMetric {
	return &PrecisionMetric{}
}

// Compute 计算精确率
func (m *PrecisionMetric) Compute(c Counts) (float64, error) {
	return ratio(m.Name(), c.TP, c.TP+c.FP)
}

// Name 返回指标名称
func (m *PrecisionMetric) Name() string {
	return "precision"
}

// ========== Recall 召回率 ==========

// RecallMetric 召回率指标
// Recall = tp / (tp + fn)
type RecallMetric struct{}

// NewRecallMetric 创建召回率指标
func NewRecallMetric() *RecallMetric {
	return &RecallMetric{}
}

// Compute 计算召回率
func (m *RecallMetric) Compute(c Counts) (float64, error) {
	return ratio(m.Name(), c.TP, c.TP+c.FN)
}

// Name 返回指标名称
func (m *RecallMetric) Name() string {
	return "recall"
}

// ========== F1 Score ==========

// F1Metric F1 分数指标
// F1 = 2 * Precision * Recall / (Precision + Recall)
type F1Metric struct {
	precision *PrecisionMetric
	recall    *RecallMetric
}

// NewF1Metric 创建 F1 指标
func NewF1Metric() *F1Metric {
	return &F1Metric{
		precision: NewPrecisionMetric(),
		recall:    NewRecallMetric(),
	}
}

// Compute 计算 F1 分数
func (m *F1Metric) Compute(c Counts) (float64, error) {
	precision, err := m.precision.Compute(c)
	if err != nil {
		return 0, err
	}
	recall, err := m.recall.Compute(c)
	if err != nil {
		return 0, err
	}

	if precision+recall == 0 {
		return 0, fmt.Errorf("%s: %w", m.Name(), ErrDegenerateMetric)
	}

	return 2 * precision * recall / (precision + recall), nil
}

// Name 返回指标名称
func (m *F1Metric) Name() string {
	return "f1"
}

// ========== Accuracy 准确率 ==========

// AccuracyMetric 准确率指标（向量方法从不拒绝预测，只报告该指标）
// Accuracy = tp / (tp + fp)
type AccuracyMetric struct{}

// NewAccuracyMetric 创建准确率指标
func NewAccuracyMetric() *AccuracyMetric {
	return &AccuracyMetric{}
}

// Compute 计算准确率
func (m *AccuracyMetric) Compute(c Counts) (float64, error) {
	return ratio(m.Name(), c.TP, c.TP+c.FP)
}

// Name 返回指标名称
func (m *AccuracyMetric) Name() string {
	return "accuracy"
}

// MetricsFor 返回消歧方法对应的指标
func MetricsFor(resolver string) []Metric {
	if resolver == "embedding" {
		return []Metric{NewAccuracyMetric()}
	}
	return []Metric{NewPrecisionMetric(), NewRecallMetric(), NewF1Metric()}
}
