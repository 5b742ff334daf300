package evaluation

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
	"github.com/ashwinyue/next-linker/internal/service/linking"
	"golang.org/x/sync/errgroup"
)

// RunStore 评估任务持久化接口（见 repository.EvaluationRunRepository）
type RunStore interface {
	Create(ctx context.Context, run *model.EvaluationRun) error
	UpdateProgress(ctx context.Context, id string, done int, status model.EvaluationRunStatus) error
	AddUnitResult(ctx context.Context, result *model.UnitResult) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, msg string) error
}

// RunInfo 评估任务的描述信息
type RunInfo struct {
	Corpus     string
	MaskEntity bool
	Threshold  int
}

// Service 评估服务
type Service struct {
	source   knowledgebase.Source
	resolver linking.Resolver
	metrics  []Metric
	workers  int
	store    RunStore
	info     RunInfo
}

// Option 评估服务选项
type Option func(*Service)

// WithWorkers 并行评估的单元数
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMetrics 自定义指标
func WithMetrics(metrics ...Metric) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithRunStore 持久化评估任务和单元结果
func WithRunStore(store RunStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithRunInfo 设置任务描述
func WithRunInfo(info RunInfo) Option {
	return func(s *Service) {
		s.info = info
	}
}

// NewService 创建评估服务
func NewService(source knowledgebase.Source, resolver linking.Resolver, opts ...Option) *Service {
	s := &Service{
		source:   source,
		resolver: resolver,
		metrics:  MetricsFor(resolver.Name()),
		workers:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics 当前使用的指标
func (s *Service) Metrics() []Metric {
	return s.metrics
}

// HardCase 难以消歧的提及
type HardCase struct {
	Unit       string   `json:"unit"`
	Mention    string   `json:"mention"`
	Gold       string   `json:"gold"`
	Predicted  string   `json:"predicted,omitempty"`
	Outcome    string   `json:"outcome"`
	Indices    []int    `json:"indices"`
	Sentence   string   `json:"sentence"`
	Candidates []string `json:"candidates,omitempty"`
	Score      float64  `json:"score,omitempty"`
}

// Score 一个指标值；未定义时 Value 为 nil
type Score struct {
	Metric string   `json:"metric"`
	Value  *float64 `json:"value"`
}

// UnitReport 单元评估结果
type UnitReport struct {
	Unit      string     `json:"unit"`
	Counts    Counts     `json:"counts"`
	Scores    []Score    `json:"scores"`
	HardCases []HardCase `json:"hard_cases,omitempty"`
}

// Score 按名称取指标值
func (r *UnitReport) Score(name string) (float64, bool) {
	for _, sc := range r.Scores {
		if sc.Metric == name && sc.Value != nil {
			return *sc.Value, true
		}
	}
	return 0, false
}

// Result 转换为持久化模型
func (r *UnitReport) Result(runID string) *model.UnitResult {
	res := &model.UnitResult{
		RunID:       runID,
		Unit:        r.Unit,
		TP:          r.Counts.TP,
		FP:          r.Counts.FP,
		FN:          r.Counts.FN,
		Undecidable: r.Counts.Undecidable,
	}
	for _, sc := range r.Scores {
		switch sc.Metric {
		case "precision":
			res.Precision = sc.Value
		case "recall":
			res.Recall = sc.Value
		case "f1":
			res.F1 = sc.Value
		case "accuracy":
			res.Accuracy = sc.Value
		}
	}
	return res
}

// Report 一次评估的完整结果
type Report struct {
	RunID    string        `json:"run_id,omitempty"`
	Resolver string        `json:"resolver"`
	Strategy string        `json:"strategy"`
	Units    []*UnitReport `json:"units"`
	Summary  []Summary     `json:"summary"`
	Total    Counts        `json:"total"`
}

// HardCases 所有单元的难例
func (r *Report) HardCases() []HardCase {
	var out []HardCase
	for _, u := range r.Units {
		out = append(out, u.HardCases...)
	}
	return out
}

// EvaluateUnit 评估一个单元：构建知识库，逐句逐提及消歧并计数
func (s *Service) EvaluateUnit(ctx context.Context, unit *model.Unit) (*UnitReport, error) {
	kb, err := s.source.ForUnit(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base for %s: %w", unit.Key, err)
	}

	ur, err := s.resolver.ForUnit(ctx, kb)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare resolver for %s: %w", unit.Key, err)
	}
	defer func() {
		if err := ur.Close(); err != nil {
			log.Printf("Warning: failed to release resolver for %s: %v", unit.Key, err)
		}
	}()

	report := &UnitReport{Unit: unit.Key}
	for _, sent := range unit.Sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decisions, err := ur.Resolve(ctx, sent)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sentence in %s: %w", unit.Key, err)
		}
		for _, d := range decisions {
			switch d.Outcome {
			case linking.TruePositive:
				report.Counts.TP++
				continue
			case linking.FalsePositive:
				report.Counts.FP++
			case linking.FalseNegative:
				report.Counts.FN++
			default:
				report.Counts.Undecidable++
			}
			report.HardCases = append(report.HardCases, HardCase{
				Unit:       unit.Key,
				Mention:    d.Mention.Text,
				Gold:       d.Gold(),
				Predicted:  d.Predicted,
				Outcome:    d.Outcome.String(),
				Indices:    d.Mention.Span.Indices(),
				Sentence:   sent.Text(),
				Candidates: d.Candidates,
				Score:      d.Score,
			})
		}
	}

	report.Scores = s.score(report.Counts)
	return report, nil
}

// score 计算所有指标，未定义的指标记为 nil
func (s *Service) score(c Counts) []Score {
	scores := make([]Score, 0, len(s.metrics))
	for _, m := range s.metrics {
		sc := Score{Metric: m.Name()}
		v, err := m.Compute(c)
		if err == nil {
			sc.Value = &v
		}
		scores = append(scores, sc)
	}
	return scores
}

// Evaluate 评估数据集中的所有单元；配置了 RunStore 时同步记录任务进度
func (s *Service) Evaluate(ctx context.Context, dataset *model.Dataset) (*Report, error) {
	run, err := s.createRun(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run, dataset)
}

// Start 创建任务后在后台执行评估，立即返回任务记录
func (s *Service) Start(ctx context.Context, dataset *model.Dataset) (*model.EvaluationRun, error) {
	if s.store == nil {
		return nil, fmt.Errorf("run store is not configured")
	}
	run, err := s.createRun(ctx, dataset)
	if err != nil {
		return nil, err
	}

	background := *run
	go func() {
		if _, err := s.execute(context.Background(), &background, dataset); err != nil {
			log.Printf("Warning: evaluation run %s failed: %v", background.ID, err)
		}
	}()
	return run, nil
}

func (s *Service) createRun(ctx context.Context, dataset *model.Dataset) (*model.EvaluationRun, error) {
	run := &model.EvaluationRun{
		Corpus:     s.info.Corpus,
		Resolver:   s.resolver.Name(),
		Strategy:   s.source.Name(),
		MaskEntity: s.info.MaskEntity,
		Threshold:  s.info.Threshold,
		Status:     model.EvaluationStatusPending,
		TotalUnits: dataset.Len(),
	}
	if s.store == nil {
		return run, nil
	}
	if err := s.store.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create evaluation run: %w", err)
	}
	return run, nil
}

func (s *Service) execute(ctx context.Context, run *model.EvaluationRun, dataset *model.Dataset) (*Report, error) {
	units := dataset.Units()
	results := make([]*UnitReport, len(units))

	var mu sync.Mutex
	done := 0
	s.progress(ctx, run, 0, model.EvaluationStatusRunning)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			r, err := s.EvaluateUnit(gctx, unit)
			if err != nil {
				return err
			}
			results[i] = r

			mu.Lock()
			defer mu.Unlock()
			done++
			if s.store != nil {
				if err := s.store.AddUnitResult(gctx, r.Result(run.ID)); err != nil {
					log.Printf("Warning: failed to save result of %s: %v", unit.Key, err)
				}
			}
			s.progress(gctx, run, done, model.EvaluationStatusRunning)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if s.store != nil {
			if ferr := s.store.Fail(context.Background(), run.ID, err.Error()); ferr != nil {
				log.Printf("Warning: failed to mark run %s as failed: %v", run.ID, ferr)
			}
		}
		return nil, err
	}

	report := &Report{
		RunID:    run.ID,
		Resolver: run.Resolver,
		Strategy: run.Strategy,
		Units:    results,
		Summary:  Aggregate(results, s.metrics),
	}
	for _, r := range results {
		report.Total.Add(r.Counts)
	}

	if s.store != nil {
		if err := s.store.Complete(ctx, run.ID); err != nil {
			log.Printf("Warning: failed to complete run %s: %v", run.ID, err)
		}
	}
	log.Printf("Evaluated %d units with %s/%s: tp=%d fp=%d fn=%d undecidable=%d",
		len(results), run.Resolver, run.Strategy,
		report.Total.TP, report.Total.FP, report.Total.FN, report.Total.Undecidable)
	return report, nil
}

func (s *Service) progress(ctx context.Context, run *model.EvaluationRun, done int, status model.EvaluationRunStatus) {
	run.DoneUnits = done
	run.Status = status
	if s.store == nil {
		return
	}
	if err := s.store.UpdateProgress(ctx, run.ID, done, status); err != nil {
		log.Printf("Warning: failed to update progress of run %s: %v", run.ID, err)
	}
}

// SummarizeRun 由已保存的单元结果计算汇总统计
func SummarizeRun(run *model.EvaluationRun) []Summary {
	reports := make([]*UnitReport, 0, len(run.Units))
	for _, u := range run.Units {
		r := &UnitReport{
			Unit:   u.Unit,
			Counts: Counts{TP: u.TP, FP: u.FP, FN: u.FN, Undecidable: u.Undecidable},
			Scores: []Score{
				{Metric: "precision", Value: u.Precision},
				{Metric: "recall", Value: u.Recall},
				{Metric: "f1", Value: u.F1},
				{Metric: "accuracy", Value: u.Accuracy},
			},
		}
		reports = append(reports, r)
	}
	return Aggregate(reports, MetricsFor(run.Resolver))
}
