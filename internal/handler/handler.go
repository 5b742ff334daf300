package handler

import (
	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/repository"
	"github.com/ashwinyue/next-linker/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Evaluation *EvaluationHandler
	System     *SystemHandler
}

// NewHandlers 创建所有处理器；dataset 为启动时加载的评估池
func NewHandlers(svc *service.Services, repo *repository.Repositories, dataset *model.Dataset) *Handlers {
	return &Handlers{
		Evaluation: NewEvaluationHandler(svc.Evaluation, repo.Evaluation, dataset),
		System:     NewSystemHandler(svc.Config, dataset),
	}
}
