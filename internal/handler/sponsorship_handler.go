package handler

import (
	"net/http"

	"promoledger/internal/domain"
	"promoledger/internal/middleware"
	"promoledger/internal/service"

	"github.com/gin-gonic/gin"
)

type SponsorshipHandler struct {
	svc *service.SponsorshipService
}

func NewSponsorshipHandler(svc *service.SponsorshipService) *SponsorshipHandler {
	return &SponsorshipHandler{svc: svc}
}

// POST /sponsorships
func (h *SponsorshipHandler) Create(c *gin.Context) {
	var in service.CreateSponsorshipInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sp, err := h.svc.Create(c.Request.Context(), middleware.GetActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

// Get returns the sponsorship with its status as of now.
// GET /sponsorships/:id
func (h *SponsorshipHandler) Get(c *gin.Context) {
	sp, err := h.svc.GetForActor(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// PATCH /sponsorships/:id/pause
func (h *SponsorshipHandler) Pause(c *gin.Context) {
	sp, err := h.svc.Pause(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// PATCH /sponsorships/:id/resume
func (h *SponsorshipHandler) Resume(c *gin.Context) {
	sp, err := h.svc.Resume(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// Impression charges one served impression. Called by the ad server.
// POST /sponsorships/:id/impressions
func (h *SponsorshipHandler) Impression(c *gin.Context) {
	var req struct {
		Cost int64 `json:"cost"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sp, err := h.svc.Charge(c.Request.Context(), c.Param("id"), req.Cost)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// ListBrand lists the caller's business sponsorships. Admins pass ?businessId=.
// GET /brand/sponsorships?status=
func (h *SponsorshipHandler) ListBrand(c *gin.Context) {
	limit, offset := page(c)
	list, err := h.svc.ListByBusiness(c.Request.Context(), middleware.GetActor(c), c.Query("businessId"),
		domain.SponsorshipStatus(c.Query("status")), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sponsorships": list, "total": len(list)})
}

// ListAdmin is the moderation queue.
// GET /admin/sponsorships?status=PENDING
func (h *SponsorshipHandler) ListAdmin(c *gin.Context) {
	limit, offset := page(c)
	status := domain.SponsorshipStatus(c.DefaultQuery("status", string(domain.SponsorshipPending)))
	list, err := h.svc.ListByStatus(c.Request.Context(), middleware.GetActor(c), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sponsorships": list, "total": len(list)})
}

// PATCH /admin/sponsorships/:id/approve
func (h *SponsorshipHandler) Approve(c *gin.Context) {
	sp, err := h.svc.Approve(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// PATCH /admin/sponsorships/:id/reject
func (h *SponsorshipHandler) Reject(c *gin.Context) {
	sp, err := h.svc.Reject(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}
