package handler

import (
	"net/http"
	"strconv"

	"promoledger/internal/middleware"
	"promoledger/internal/service"

	"github.com/gin-gonic/gin"
)

type AffiliateHandler struct {
	svc *service.AffiliateService
}

func NewAffiliateHandler(svc *service.AffiliateService) *AffiliateHandler {
	return &AffiliateHandler{svc: svc}
}

// List returns the caller's links.
// GET /influencers/affiliate-links
func (h *AffiliateHandler) List(c *gin.Context) {
	links, err := h.svc.ListMine(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links, "total": len(links)})
}

// Create returns the caller's link for the product, creating it on first use.
// POST /influencers/affiliate-links
func (h *AffiliateHandler) Create(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	link, err := h.svc.CreateLink(c.Request.Context(), middleware.GetActor(c), req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// SetActive toggles a link.
// PATCH /influencers/affiliate-links/:id
func (h *AffiliateHandler) SetActive(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	link, err := h.svc.SetActive(c.Request.Context(), middleware.GetActor(c), c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// QR renders the share URL as a PNG; the URL itself is in X-Share-URL.
// GET /influencers/affiliate-links/:id/qr?size=256
func (h *AffiliateHandler) QR(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	share, err := h.svc.Share(c.Request.Context(), middleware.GetActor(c), c.Param("id"), size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Share-URL", share.URL)
	c.Data(http.StatusOK, "image/png", share.QR)
}
