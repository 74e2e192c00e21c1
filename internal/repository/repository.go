package repository

import (
	"context"
	"errors"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
)

// ErrConditionFailed is returned when a conditional update matched no row even
// though the row exists. Callers re-read to classify the failure.
var ErrConditionFailed = errors.New("condition failed")

type AffiliateLinkStore interface {
	Create(ctx context.Context, link *models.AffiliateLink) error
	GetByID(ctx context.Context, id string) (*models.AffiliateLink, error)
	GetByCode(ctx context.Context, code string) (*models.AffiliateLink, error)
	ListByInfluencer(ctx context.Context, influencerID string) ([]models.AffiliateLink, error)
	ListByProduct(ctx context.Context, productID string) ([]models.AffiliateLink, error)
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
	IncrementClicks(ctx context.Context, id string, now time.Time) error
	IncrementConversions(ctx context.Context, id string, now time.Time) error
}

// Conversion carries the fields written when a click becomes a conversion.
type Conversion struct {
	OrderID          string
	OrderAmount      int64
	CommissionAmount int64
	RateBps          int
	At               time.Time
}

type AttributionStore interface {
	Create(ctx context.Context, a *models.Attribution) error
	GetByID(ctx context.Context, id string) (*models.Attribution, error)
	GetByLinkAndOrder(ctx context.Context, linkID, orderID string) (*models.Attribution, error)
	// ListOpenClicks returns click rows without an order on linkID clicked at or
	// after since, newest first.
	ListOpenClicks(ctx context.Context, linkID string, since time.Time, limit int) ([]models.Attribution, error)
	// Convert applies c only while the row is still an open click.
	Convert(ctx context.Context, id string, c Conversion) (bool, error)
	// MarkPaid applies only while the row is a conversion.
	MarkPaid(ctx context.Context, id string, at time.Time) (bool, error)
	List(ctx context.Context, f models.AttributionFilter) ([]models.Attribution, error)
	Count(ctx context.Context, f models.AttributionFilter) (int64, error)
	TotalsByStatus(ctx context.Context, influencerID string) ([]models.StatusTotal, error)
	LastActivity(ctx context.Context, productID string) (*time.Time, error)
}

// StatusChange is a guarded sponsorship status move.
type StatusChange struct {
	From []domain.SponsorshipStatus
	// FromReason, when set, additionally requires the stored pause reason.
	FromReason  *string
	To          domain.SponsorshipStatus
	PauseReason string
	// RequireInWindow requires StartDate <= At <= EndDate.
	RequireInWindow bool
	StampApproved   bool
	At              time.Time
}

type SponsorshipStore interface {
	Create(ctx context.Context, s *models.Sponsorship) error
	GetByID(ctx context.Context, id string) (*models.Sponsorship, error)
	List(ctx context.Context, f models.SponsorshipFilter) ([]models.Sponsorship, error)
	// Charge atomically debits cost when budget >= cost, spentToday+cost <= dailyBudget,
	// status is ACTIVE and now is inside the sponsorship window.
	Charge(ctx context.Context, id string, cost int64, now time.Time) (*models.Sponsorship, error)
	Transition(ctx context.Context, id string, change StatusChange) (bool, error)
	// ResetDaily zeroes spentToday for rows not yet reset on day and resumes
	// daily-cap pauses that still have budget. Rows already on day are untouched.
	ResetDaily(ctx context.Context, day string, now time.Time) (reset int64, resumed int64, err error)
	// ActivateDue moves APPROVED rows whose window has opened to ACTIVE.
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
}

type ProductStore interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	Upsert(ctx context.Context, p *models.Product) error
	ListIDs(ctx context.Context) ([]string, error)
	UpdateScores(ctx context.Context, s models.ProductScores) error
	// ListRanked orders by ranking score descending, then id ascending.
	ListRanked(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, audience, recipientID string, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, audience, id, recipientID string, at time.Time) error
}

type DeviceTokenStore interface {
	Upsert(ctx context.Context, t *models.DeviceToken) error
	ListByUser(ctx context.Context, userID string) ([]models.DeviceToken, error)
}

// Stores groups one backend's implementations.
type Stores struct {
	Links         AffiliateLinkStore
	Attributions  AttributionStore
	Sponsorships  SponsorshipStore
	Products      ProductStore
	Notifications NotificationStore
	DeviceTokens  DeviceTokenStore
}

// NotificationTable maps an audience to its collection/table name.
func NotificationTable(audience string) string {
	if audience == domain.AudienceSeller {
		return "seller_notifications"
	}
	return "influencer_notifications"
}

// Page clamps limit/offset to sane bounds.
func Page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
