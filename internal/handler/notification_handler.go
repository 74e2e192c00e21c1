package handler

import (
	"net/http"

	"promoledger/internal/domain"
	"promoledger/internal/middleware"
	"promoledger/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// recipient resolves who the caller reads notifications as. Seller
// notifications are addressed to the business, not the user.
func recipient(c *gin.Context, audience string) string {
	actor := middleware.GetActor(c)
	if audience == domain.AudienceSeller {
		return actor.BusinessID
	}
	return actor.UserID
}

// List returns the caller's notifications for audience, newest first.
func (h *NotificationHandler) List(audience string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := page(c)
		list, err := h.svc.List(c.Request.Context(), audience, recipient(c, audience), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list})
	}
}

func (h *NotificationHandler) MarkRead(audience string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.MarkRead(c.Request.Context(), audience, c.Param("id"), recipient(c, audience)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// RegisterDevice stores an FCM token for the caller.
// POST /me/device-tokens
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.RegisterDevice(c.Request.Context(), middleware.GetActor(c).UserID, req.Token, req.Platform); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}
