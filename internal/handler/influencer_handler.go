package handler

import (
	"net/http"
	"strconv"

	"promoledger/internal/middleware"
	"promoledger/internal/service"

	"github.com/gin-gonic/gin"
)

type InfluencerHandler struct {
	stats *service.StatsService
}

func NewInfluencerHandler(stats *service.StatsService) *InfluencerHandler {
	return &InfluencerHandler{stats: stats}
}

// GET /influencers/stats
func (h *InfluencerHandler) Stats(c *gin.Context) {
	st, err := h.stats.Stats(c.Request.Context(), middleware.GetActor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Metrics returns one point per UTC day, oldest first.
// GET /influencers/metrics?days=30
func (h *InfluencerHandler) Metrics(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	points, err := h.stats.Metrics(c.Request.Context(), middleware.GetActor(c).UserID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": len(points), "metrics": points})
}
