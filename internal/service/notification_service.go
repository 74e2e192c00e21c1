package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotificationService stores influencer and seller notifications and pushes
// them to registered devices. Pushing is best-effort.
type NotificationService struct {
	repo   repository.NotificationStore
	tokens repository.DeviceTokenStore
	push   Pusher
	log    *zap.Logger
	now    func() time.Time
}

func NewNotificationService(repo repository.NotificationStore, tokens repository.DeviceTokenStore, push Pusher, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, tokens: tokens, push: push, log: log, now: time.Now}
}

func (s *NotificationService) Notify(ctx context.Context, audience, recipientID, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(ctx, &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Audience:    audience,
		Type:        notifType,
		Title:       title,
		Body:        body,
		Data:        dataJSON,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.sendPush(ctx, recipientID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID, notifType, title, body string, data map[string]interface{}) {
	if s.push == nil || s.tokens == nil {
		return
	}
	tokens, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		s.log.Warn("list device tokens", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, t := range tokens {
		if err := s.push.SendToUser(ctx, t.Token, notifType, title, body, data); err != nil {
			s.log.Warn("push notification", zap.String("user_id", userID), zap.String("type", notifType), zap.Error(err))
		}
	}
}

// notify is the fire-and-log variant used after ledger writes have committed.
func (s *NotificationService) notify(ctx context.Context, audience, recipientID, notifType, title, body string, data map[string]interface{}) {
	if s == nil {
		return
	}
	if err := s.Notify(ctx, audience, recipientID, notifType, title, body, data); err != nil {
		s.log.Error("store notification", zap.String("type", notifType), zap.String("recipient_id", recipientID), zap.Error(err))
	}
}

func (s *NotificationService) NotifyCommissionEarned(ctx context.Context, a *models.Attribution) {
	s.notify(ctx, domain.AudienceInfluencer, a.InfluencerID, domain.NotifCommissionEarned,
		"Commission earned", fmt.Sprintf("You earned a commission of %s on a new order.", formatMinor(a.Commission())),
		map[string]interface{}{"attribution_id": a.ID, "product_id": a.ProductID, "commission": a.Commission()})
}

func (s *NotificationService) NotifyCommissionPaid(ctx context.Context, a *models.Attribution) {
	s.notify(ctx, domain.AudienceInfluencer, a.InfluencerID, domain.NotifCommissionPaid,
		"Commission paid", fmt.Sprintf("Your commission of %s has been paid.", formatMinor(a.Commission())),
		map[string]interface{}{"attribution_id": a.ID, "commission": a.Commission()})
}

func (s *NotificationService) NotifySponsorshipPaused(ctx context.Context, sp *models.Sponsorship, reason string) {
	body := "Your sponsorship reached its daily budget and resumes tomorrow."
	if reason == domain.PauseReasonBudgetDepleted {
		body = "Your sponsorship has used its entire budget."
	}
	s.notify(ctx, domain.AudienceSeller, sp.BusinessID, domain.NotifSponsorshipPaused, "Sponsorship paused", body,
		map[string]interface{}{"sponsorship_id": sp.ID, "product_id": sp.ProductID, "reason": reason})
}

func (s *NotificationService) NotifySponsorshipApproved(ctx context.Context, sp *models.Sponsorship) {
	s.notify(ctx, domain.AudienceSeller, sp.BusinessID, domain.NotifSponsorshipApproved, "Sponsorship approved",
		"Your sponsorship was approved.", map[string]interface{}{"sponsorship_id": sp.ID, "product_id": sp.ProductID})
}

func (s *NotificationService) NotifySponsorshipRejected(ctx context.Context, sp *models.Sponsorship) {
	s.notify(ctx, domain.AudienceSeller, sp.BusinessID, domain.NotifSponsorshipRejected, "Sponsorship rejected",
		"Your sponsorship was not approved.", map[string]interface{}{"sponsorship_id": sp.ID, "product_id": sp.ProductID})
}

func (s *NotificationService) List(ctx context.Context, audience, recipientID string, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByRecipient(ctx, audience, recipientID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, audience, id, recipientID string) error {
	return s.repo.MarkRead(ctx, audience, id, recipientID, s.now().UTC())
}

// RegisterDevice binds an FCM token to userID.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID, token, platform string) error {
	if token == "" {
		return fmt.Errorf("%w: device token is required", domain.ErrInvalidConfig)
	}
	return s.tokens.Upsert(ctx, &models.DeviceToken{Token: token, UserID: userID, Platform: platform, UpdatedAt: s.now().UTC()})
}

// formatMinor renders minor units as a two-decimal amount.
func formatMinor(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
