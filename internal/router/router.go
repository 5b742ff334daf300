package router

import (
	"github.com/ashwinyue/next-linker/internal/handler"
	"github.com/ashwinyue/next-linker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		v1.GET("/system/info", h.System.GetSystemInfo)
		v1.GET("/units", h.System.ListUnits)

		// Evaluation 评估任务
		evaluations := v1.Group("/evaluations")
		{
			evaluations.POST("", h.Evaluation.CreateEvaluation)
			evaluations.GET("", h.Evaluation.ListEvaluations)
			evaluations.GET("/:id", h.Evaluation.GetEvaluation)
			evaluations.GET("/:id/summary", h.Evaluation.GetEvaluationSummary)
			evaluations.DELETE("/:id", h.Evaluation.DeleteEvaluation)
		}
	}

	return r
}
