package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/utils"
)

// StatsController provides catalog totals and storage usage.
type StatsController struct {
	store   *catalog.Store
	quotaGB float64
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(store *catalog.Store, quotaGB float64) *StatsController {
	return &StatsController{store: store, quotaGB: quotaGB}
}

// GetStats returns file count, total size and usage against the quota.
func (s *StatsController) GetStats(ctx *gin.Context) {
	list, err := s.store.Load(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, catalog.ComputeStats(list, s.quotaGB))
}
