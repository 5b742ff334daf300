// Package handler 提供评估相关的 HTTP 处理器
package handler

import (
	"context"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/repository"
	"github.com/ashwinyue/next-linker/internal/service/evaluation"
	"github.com/gin-gonic/gin"
)

// Runner 后台执行评估（见 evaluation.Service）
type Runner interface {
	Start(ctx context.Context, dataset *model.Dataset) (*model.EvaluationRun, error)
}

// EvaluationHandler 评估处理器
type EvaluationHandler struct {
	runner  Runner
	runs    repository.EvaluationRunRepository
	dataset *model.Dataset
}

// NewEvaluationHandler 创建评估处理器
func NewEvaluationHandler(runner Runner, runs repository.EvaluationRunRepository, dataset *model.Dataset) *EvaluationHandler {
	return &EvaluationHandler{runner: runner, runs: runs, dataset: dataset}
}

// CreateEvaluationRequest 创建评估请求；Units 为空时评估全部单元
type CreateEvaluationRequest struct {
	Units []string `json:"units"`
}

// CreateEvaluation 创建评估任务
// @Summary      创建评估任务
// @Description  在后台评估全部或指定的单元
// @Tags         评估
// @Accept       json
// @Produce      json
// @Param        request  body      CreateEvaluationRequest  false  "评估请求"
// @Success      202      {object}  Response
// @Router       /api/v1/evaluations [post]
func (h *EvaluationHandler) CreateEvaluation(c *gin.Context) {
	var req CreateEvaluationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	dataset := h.dataset
	if len(req.Units) > 0 {
		subset, err := h.dataset.Subset(req.Units)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		dataset = subset
	}

	run, err := h.runner.Start(c.Request.Context(), dataset)
	if err != nil {
		errorResponse(c, err)
		return
	}

	accepted(c, run)
}

// ListEvaluations 列出评估任务
// @Summary      列出评估任务
// @Tags         评估
// @Produce      json
// @Param        corpus   query     string  false  "语料名称"
// @Param        limit    query     int     false  "每页数量" default(20)
// @Param        offset   query     int     false  "偏移量" default(0)
// @Success      200      {object}  Response
// @Router       /api/v1/evaluations [get]
func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	limit := queryInt(c.Query("limit"), 20)
	offset := queryInt(c.Query("offset"), 0)

	runs, total, err := h.runs.List(c.Request.Context(), c.Query("corpus"), limit, offset)
	if err != nil {
		errorResponse(c, err)
		return
	}

	success(c, gin.H{
		"items":  runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetEvaluation 获取评估任务及单元结果
// @Summary      获取评估任务
// @Tags         评估
// @Produce      json
// @Param        id   path      string  true  "任务ID"
// @Success      200  {object}  Response
// @Router       /api/v1/evaluations/{id} [get]
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	success(c, run)
}

// GetEvaluationSummary 获取评估任务的描述统计
// @Summary      获取评估汇总
// @Tags         评估
// @Produce      json
// @Param        id   path      string  true  "任务ID"
// @Success      200  {object}  Response
// @Router       /api/v1/evaluations/{id}/summary [get]
func (h *EvaluationHandler) GetEvaluationSummary(c *gin.Context) {
	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	success(c, gin.H{
		"run_id":  run.ID,
		"status":  run.Status,
		"summary": evaluation.SummarizeRun(run),
	})
}

// DeleteEvaluation 删除评估任务
// @Summary      删除评估任务
// @Tags         评估
// @Produce      json
// @Param        id   path      string  true  "任务ID"
// @Success      200  {object}  Response
// @Router       /api/v1/evaluations/{id} [delete]
func (h *EvaluationHandler) DeleteEvaluation(c *gin.Context) {
	if err := h.runs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}

	success(c, gin.H{"message": "评估任务已删除"})
}
