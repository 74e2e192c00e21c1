package handler

import (
	"net/http"

	"promoledger/internal/service"

	"github.com/gin-gonic/gin"
)

type RankingHandler struct {
	svc *service.RankingService
}

func NewRankingHandler(svc *service.RankingService) *RankingHandler {
	return &RankingHandler{svc: svc}
}

// GET /ranking/homepage
func (h *RankingHandler) Homepage(c *gin.Context) {
	limit, offset := page(c)
	products, err := h.svc.Homepage(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GET /ranking/category/:slug
func (h *RankingHandler) Category(c *gin.Context) {
	limit, offset := page(c)
	products, err := h.svc.Category(c.Request.Context(), c.Param("slug"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GET /ranking/search?q=
func (h *RankingHandler) Search(c *gin.Context) {
	limit, offset := page(c)
	products, err := h.svc.Search(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// Recompute rescores one product when productId is given, otherwise all of them.
// POST /admin/ranking/recompute
func (h *RankingHandler) Recompute(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.ProductID != "" {
		res, err := h.svc.RecomputeScore(c.Request.Context(), req.ProductID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": []interface{}{res}})
		return
	}
	results, err := h.svc.RecomputeAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
