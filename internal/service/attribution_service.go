package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promoledger/internal/commission"
	"promoledger/internal/domain"
	"promoledger/internal/events"
	"promoledger/internal/metrics"
	"promoledger/internal/models"
	"promoledger/internal/repository"
	"promoledger/pkg/fingerprint"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AttributionService records affiliate clicks, converts them into commissions
// and tracks payout.
type AttributionService struct {
	links        repository.AffiliateLinkStore
	attributions repository.AttributionStore
	rates        *commission.Rates
	window       time.Duration
	sponsorships *SponsorshipService
	clickCost    int64
	hasher       *fingerprint.Hasher
	notifier     *NotificationService
	bus          *events.Bus
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          func() time.Time
}

type AttributionDeps struct {
	Links        repository.AffiliateLinkStore
	Attributions repository.AttributionStore
	Rates        *commission.Rates
	Window       time.Duration
	// Sponsorships, when set, is charged ClickCost for every recorded click.
	Sponsorships *SponsorshipService
	ClickCost    int64
	Hasher       *fingerprint.Hasher
	Notifier     *NotificationService
	Bus          *events.Bus
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

func NewAttributionService(d AttributionDeps) *AttributionService {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &AttributionService{
		links:        d.Links,
		attributions: d.Attributions,
		rates:        d.Rates,
		window:       d.Window,
		sponsorships: d.Sponsorships,
		clickCost:    d.ClickCost,
		hasher:       d.Hasher,
		notifier:     d.Notifier,
		bus:          d.Bus,
		metrics:      d.Metrics,
		log:          log,
		now:          time.Now,
	}
}

func (s *AttributionService) SetClock(now func() time.Time) { s.now = now }

type ClickInput struct {
	ReferralCode string `json:"referralCode" binding:"required"`
	ProductID    string `json:"productId" binding:"required"`
	// ClickID makes webhook retries idempotent.
	ClickID   string `json:"clickId"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RecordClick resolves the referral code and stores a click attribution.
func (s *AttributionService) RecordClick(ctx context.Context, in ClickInput) (*models.AffiliateLink, error) {
	link, err := s.links.GetByCode(ctx, in.ReferralCode)
	if err != nil {
		return nil, err
	}
	if !link.IsActive || link.ProductID != in.ProductID {
		return nil, fmt.Errorf("referral code %s for product %s: %w", in.ReferralCode, in.ProductID, domain.ErrNotFound)
	}

	if in.ClickID != "" {
		existing, err := s.attributions.GetByID(ctx, in.ClickID)
		switch {
		case err == nil:
			if existing.LinkID != link.ID {
				s.metrics.Transition(string(domain.AttributionClick), "rejected")
				return nil, fmt.Errorf("%w: click %s belongs to another link", domain.ErrConflict, in.ClickID)
			}
			if _, err := domain.AdvanceAttribution(existing.Status, domain.AttributionClick); err != nil {
				s.metrics.Transition(string(domain.AttributionClick), "rejected")
				return nil, err
			}
			s.metrics.Transition(string(domain.AttributionClick), "noop")
			return link, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	now := s.now().UTC()
	id := in.ClickID
	if id == "" {
		id = uuid.NewString()
	}
	a := &models.Attribution{
		ID:            id,
		LinkID:        link.ID,
		InfluencerID:  link.InfluencerID,
		ProductID:     link.ProductID,
		Status:        domain.AttributionClick,
		IPHash:        s.hasher.Hash(in.IP),
		UserAgentHash: s.hasher.Hash(in.UserAgent),
		ClickedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.attributions.Create(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) && in.ClickID != "" {
			// A concurrent retry won the insert.
			return link, nil
		}
		return nil, err
	}
	if err := s.links.IncrementClicks(ctx, link.ID, now); err != nil {
		return nil, err
	}
	link.Clicks++
	s.metrics.Transition(string(domain.AttributionClick), "ok")
	s.bus.Emit(ctx, events.AttributionClicked, a.ID, a)

	if s.sponsorships != nil && s.clickCost > 0 {
		if _, err := s.sponsorships.ChargeProduct(ctx, link.ProductID, s.clickCost); err != nil {
			s.log.Info("click not charged", zap.String("product_id", link.ProductID), zap.Error(err))
		}
	}
	return link, nil
}

type ConversionInput struct {
	LinkID      string `json:"linkId" binding:"required"`
	OrderID     string `json:"orderId" binding:"required"`
	OrderAmount int64  `json:"orderAmount"`
}

// RecordConversion attributes an order to the newest open click on the link.
// Replaying the same (link, order) returns the stored attribution.
func (s *AttributionService) RecordConversion(ctx context.Context, in ConversionInput) (*models.Attribution, error) {
	if in.LinkID == "" || in.OrderID == "" {
		return nil, fmt.Errorf("%w: linkId and orderId are required", domain.ErrInvalidConfig)
	}
	if existing, err := s.attributions.GetByLinkAndOrder(ctx, in.LinkID, in.OrderID); err == nil {
		s.metrics.Transition(string(domain.AttributionConversion), "noop")
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	link, err := s.links.GetByID(ctx, in.LinkID)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.For(link.ProductID)
	if err != nil {
		return nil, err
	}
	amount, err := commission.Compute(in.OrderAmount, rate)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	clicks, err := s.attributions.ListOpenClicks(ctx, link.ID, now.Add(-s.window), 5)
	if err != nil {
		return nil, err
	}
	conv := repository.Conversion{OrderID: in.OrderID, OrderAmount: in.OrderAmount, CommissionAmount: amount, RateBps: rate, At: now}
	for _, click := range clicks {
		ok, err := s.attributions.Convert(ctx, click.ID, conv)
		if errors.Is(err, domain.ErrConflict) {
			// Same order converted concurrently through another click.
			return s.attributions.GetByLinkAndOrder(ctx, in.LinkID, in.OrderID)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		a, err := s.attributions.GetByID(ctx, click.ID)
		if err != nil {
			return nil, err
		}
		if err := s.links.IncrementConversions(ctx, link.ID, now); err != nil {
			s.log.Error("increment link conversions", zap.String("link_id", link.ID), zap.Error(err))
		}
		s.metrics.Transition(string(domain.AttributionConversion), "ok")
		s.log.Info("conversion recorded",
			zap.String("attribution_id", a.ID),
			zap.String("order_id", in.OrderID),
			zap.Int64("commission", amount))
		s.bus.Emit(ctx, events.AttributionConverted, a.ID, a)
		s.notifier.NotifyCommissionEarned(ctx, a)
		return a, nil
	}
	s.metrics.Transition(string(domain.AttributionConversion), "rejected")
	return nil, fmt.Errorf("%w: no click on link %s within the attribution window", domain.ErrInvalidState, in.LinkID)
}

// MarkPaid moves a conversion to paid. Paying a paid row again is a no-op.
func (s *AttributionService) MarkPaid(ctx context.Context, actor domain.Actor, id string) (*models.Attribution, error) {
	if !actor.Can(domain.CapPayoutCommission) {
		return nil, fmt.Errorf("%w: payout requires admin", domain.ErrForbidden)
	}
	a, err := s.attributions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := domain.AdvanceAttribution(a.Status, domain.AttributionPaid)
	if err != nil {
		s.metrics.Transition(string(domain.AttributionPaid), "rejected")
		return nil, err
	}
	if !changed {
		s.metrics.Transition(string(domain.AttributionPaid), "noop")
		return a, nil
	}
	ok, err := s.attributions.MarkPaid(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if a, err = s.attributions.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: fine if the winner also paid it.
		if a.Status == domain.AttributionPaid {
			s.metrics.Transition(string(domain.AttributionPaid), "noop")
			return a, nil
		}
		return nil, fmt.Errorf("%w: attribution %s is %s", domain.ErrInvalidState, id, a.Status)
	}
	s.metrics.Transition(string(domain.AttributionPaid), "ok")
	s.bus.Emit(ctx, events.AttributionPaid, a.ID, a)
	s.notifier.NotifyCommissionPaid(ctx, a)
	return a, nil
}

// ListForInfluencer lists the influencer's attributions, newest first.
func (s *AttributionService) ListForInfluencer(ctx context.Context, influencerID string, status domain.AttributionStatus, limit, offset int) ([]models.Attribution, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidConfig, status)
	}
	limit, offset = repository.Page(limit, offset)
	f := models.AttributionFilter{InfluencerID: influencerID, Status: status, Limit: limit, Offset: offset}
	list, err := s.attributions.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.attributions.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ExportForInfluencer returns every matching attribution, newest first.
func (s *AttributionService) ExportForInfluencer(ctx context.Context, influencerID string, status domain.AttributionStatus) ([]models.Attribution, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidConfig, status)
	}
	const pageSize = 200
	var out []models.Attribution
	for offset := 0; ; offset += pageSize {
		page, err := s.attributions.List(ctx, models.AttributionFilter{
			InfluencerID: influencerID, Status: status, Limit: pageSize, Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}
