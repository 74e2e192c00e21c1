package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"promoledger/internal/domain"
	"promoledger/internal/middleware"
	"promoledger/internal/report"
	"promoledger/internal/service"

	"github.com/gin-gonic/gin"
)

type AttributionHandler struct {
	svc *service.AttributionService
}

func NewAttributionHandler(svc *service.AttributionService) *AttributionHandler {
	return &AttributionHandler{svc: svc}
}

// TrackClick records a referral click from the storefront. Public.
// POST /track/click
func (h *AttributionHandler) TrackClick(c *gin.Context) {
	var in service.ClickInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	in.IP = c.ClientIP()
	in.UserAgent = c.Request.UserAgent()
	link, err := h.svc.RecordClick(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded", "linkId": link.ID})
}

// RecordConversion attributes an order. Called by the order service.
// POST /attributions/conversions
func (h *AttributionHandler) RecordConversion(c *gin.Context) {
	var in service.ConversionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.RecordConversion(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// MarkPaid settles a conversion.
// POST /admin/attributions/:id/pay
func (h *AttributionHandler) MarkPaid(c *gin.Context) {
	a, err := h.svc.MarkPaid(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListMine lists the caller's attributions.
// GET /influencers/attributions?status=&limit=&offset=
func (h *AttributionHandler) ListMine(c *gin.Context) {
	limit, offset := page(c)
	status := domain.AttributionStatus(c.Query("status"))
	list, total, err := h.svc.ListForInfluencer(c.Request.Context(), middleware.GetActor(c).UserID, status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attributions": list, "total": total})
}

// Export streams the caller's attributions as an XLSX workbook.
// GET /influencers/attributions/export?status=
func (h *AttributionHandler) Export(c *gin.Context) {
	actor := middleware.GetActor(c)
	rows, err := h.svc.ExportForInfluencer(c.Request.Context(), actor.UserID, domain.AttributionStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteAttributions(&buf, rows); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attributions-%s.xlsx"`, actor.UserID))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
