package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/ashwinyue/next-linker/internal/config"
	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRunner 记录收到的数据集
type fakeRunner struct {
	dataset *model.Dataset
}

func (f *fakeRunner) Start(ctx context.Context, dataset *model.Dataset) (*model.EvaluationRun, error) {
	f.dataset = dataset
	return &model.EvaluationRun{ID: "run-1", Status: model.EvaluationStatusPending, TotalUnits: dataset.Len()}, nil
}

// fakeRuns 内存评估任务仓库
type fakeRuns struct {
	runs    map[string]*model.EvaluationRun
	deleted []string
}

func (f *fakeRuns) Create(ctx context.Context, run *model.EvaluationRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) GetByID(ctx context.Context, id string) (*model.EvaluationRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return run, nil
}

func (f *fakeRuns) List(ctx context.Context, corpus string, limit, offset int) ([]*model.EvaluationRun, int64, error) {
	var runs []*model.EvaluationRun
	for _, r := range f.runs {
		if corpus == "" || r.Corpus == corpus {
			runs = append(runs, r)
		}
	}
	return runs, int64(len(runs)), nil
}

func (f *fakeRuns) UpdateProgress(ctx context.Context, id string, done int, status model.EvaluationRunStatus) error {
	return nil
}

func (f *fakeRuns) AddUnitResult(ctx context.Context, result *model.UnitResult) error {
	return nil
}

func (f *fakeRuns) Complete(ctx context.Context, id string) error { return nil }

func (f *fakeRuns) Fail(ctx context.Context, id string, msg string) error { return nil }

func (f *fakeRuns) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func setupRouter(runner Runner, runs *fakeRuns) *gin.Engine {
	gin.SetMode(gin.TestMode)
	dataset := testutil.NovelDataset()
	cfg, _ := config.Load("")

	h := NewEvaluationHandler(runner, runs, dataset)
	sys := NewSystemHandler(cfg, dataset)

	r := gin.New()
	r.POST("/evaluations", h.CreateEvaluation)
	r.GET("/evaluations", h.ListEvaluations)
	r.GET("/evaluations/:id", h.GetEvaluation)
	r.GET("/evaluations/:id/summary", h.GetEvaluationSummary)
	r.DELETE("/evaluations/:id", h.DeleteEvaluation)
	r.GET("/units", sys.ListUnits)
	return r
}

func TestCreateEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		wantCode  int
		wantUnits int
	}{
		{"all units", nil, http.StatusAccepted, 2},
		{"subset", CreateEvaluationRequest{Units: []string{"test/schmidt"}}, http.StatusAccepted, 1},
		{"unknown unit", CreateEvaluationRequest{Units: []string{"dev/missing"}}, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			r := setupRouter(runner, &fakeRuns{runs: map[string]*model.EvaluationRun{}})

			w := testutil.PerformRequest(t, r, http.MethodPost, "/evaluations", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantUnits == 0 {
				assert.Nil(t, runner.dataset)
				return
			}
			require.NotNil(t, runner.dataset)
			assert.Equal(t, tt.wantUnits, runner.dataset.Len())
		})
	}
}

func TestGetEvaluation(t *testing.T) {
	one := 1.0
	runs := &fakeRuns{runs: map[string]*model.EvaluationRun{
		"run-1": {
			ID:       "run-1",
			Resolver: "rule",
			Status:   model.EvaluationStatusCompleted,
			Units:    []model.UnitResult{{Unit: "train/fontane", TP: 3, Precision: &one, Recall: &one, F1: &one}},
		},
	}}
	r := setupRouter(&fakeRunner{}, runs)

	w := testutil.PerformRequest(t, r, http.MethodGet, "/evaluations/run-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.PerformRequest(t, r, http.MethodGet, "/evaluations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.PerformRequest(t, r, http.MethodGet, "/evaluations/run-1/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Summary []struct {
				Metric string  `json:"metric"`
				Count  int     `json:"count"`
				Mean   float64 `json:"mean"`
			} `json:"summary"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, w, &resp)
	require.Len(t, resp.Data.Summary, 3)
	assert.Equal(t, "precision", resp.Data.Summary[0].Metric)
	assert.Equal(t, 1, resp.Data.Summary[0].Count)
}

func TestListAndDeleteEvaluations(t *testing.T) {
	runs := &fakeRuns{runs: map[string]*model.EvaluationRun{
		"a": {ID: "a", Corpus: "novels"},
		"b": {ID: "b", Corpus: "press"},
	}}
	r := setupRouter(&fakeRunner{}, runs)

	w := testutil.PerformRequest(t, r, http.MethodGet, "/evaluations?corpus=novels&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Total int64 `json:"total"`
			Limit int   `json:"limit"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, w, &resp)
	assert.Equal(t, int64(1), resp.Data.Total)
	assert.Equal(t, 5, resp.Data.Limit)

	w = testutil.PerformRequest(t, r, http.MethodDelete, "/evaluations/a", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a"}, runs.deleted)
}

func TestListUnits(t *testing.T) {
	r := setupRouter(&fakeRunner{}, &fakeRuns{runs: map[string]*model.EvaluationRun{}})

	w := testutil.PerformRequest(t, r, http.MethodGet, "/units", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Items []UnitInfo `json:"items"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, w, &resp)
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, UnitInfo{Key: "test/schmidt", Partition: "test", Sentences: 6, Mentions: 6}, resp.Data.Items[0])
}

func TestQueryInt(t *testing.T) {
	assert.Equal(t, 20, queryInt("", 20))
	assert.Equal(t, 7, queryInt("7", 20))
	assert.Equal(t, 20, queryInt("-3", 20))
	assert.Equal(t, 20, queryInt("abc", 20))
}
