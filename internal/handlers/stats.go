package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capitao/athena-tasks/internal/apperrors"
	"github.com/capitao/athena-tasks/internal/services"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats returns analytics for the requested period and optional project.
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Get(c.Query("period"), c.Query("project"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
