package handler

import (
	"github.com/ashwinyue/next-linker/internal/config"
	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/gin-gonic/gin"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	cfg     *config.Config
	dataset *model.Dataset
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(cfg *config.Config, dataset *model.Dataset) *SystemHandler {
	return &SystemHandler{cfg: cfg, dataset: dataset}
}

// UnitInfo 评估单元信息
type UnitInfo struct {
	Key       string `json:"key"`
	Partition string `json:"partition"`
	Sentences int    `json:"sentences"`
	Mentions  int    `json:"mentions"`
}

// GetSystemInfo 获取当前配置的消歧方法和语料
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	success(c, gin.H{
		"version":     h.cfg.App.Version,
		"corpus":      h.cfg.Corpus.Name,
		"units":       h.dataset.Len(),
		"resolver":    h.cfg.Resolver.Kind,
		"strategy":    h.cfg.KnowledgeBase.Strategy,
		"threshold":   h.cfg.KnowledgeBase.Threshold,
		"mask_entity": h.cfg.Resolver.MaskEntity,
	})
}

// ListUnits 列出评估池中的单元
// GET /api/v1/units
func (h *SystemHandler) ListUnits(c *gin.Context) {
	units := h.dataset.Units()
	items := make([]UnitInfo, 0, len(units))
	for _, u := range units {
		items = append(items, UnitInfo{
			Key:       u.Key,
			Partition: string(u.Partition),
			Sentences: len(u.Sentences),
			Mentions:  u.MentionCount(),
		})
	}
	success(c, gin.H{"items": items, "total": len(items)})
}
