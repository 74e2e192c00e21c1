package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"promoledger/internal/cache"
	"promoledger/internal/domain"
	"promoledger/internal/events"
	"promoledger/internal/metrics"
	"promoledger/internal/models"
	"promoledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SponsorshipService is the sponsorship budget ledger. Every read goes through
// read(), which applies the derived EXPIRED status.
type SponsorshipService struct {
	repo     repository.SponsorshipStore
	products repository.ProductStore
	cache    cache.Cache
	cacheTTL time.Duration
	notifier *NotificationService
	bus      *events.Bus
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time

	generation atomic.Int64
}

func NewSponsorshipService(
	repo repository.SponsorshipStore,
	products repository.ProductStore,
	c cache.Cache,
	cacheTTL time.Duration,
	notifier *NotificationService,
	bus *events.Bus,
	m *metrics.Metrics,
	log *zap.Logger,
) *SponsorshipService {
	if c == nil {
		c = cache.Nop{}
	}
	return &SponsorshipService{
		repo:     repo,
		products: products,
		cache:    c,
		cacheTTL: cacheTTL,
		notifier: notifier,
		bus:      bus,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *SponsorshipService) SetClock(now func() time.Time) { s.now = now }

type CreateSponsorshipInput struct {
	ProductID string `json:"productId" binding:"required"`
	// BusinessID is taken from the actor for business roles; admins must set it.
	BusinessID  string    `json:"businessId"`
	Budget      int64     `json:"budget" binding:"required"`
	DailyBudget int64     `json:"dailyBudget" binding:"required"`
	StartDate   time.Time `json:"startDate" binding:"required"`
	EndDate     time.Time `json:"endDate" binding:"required"`
}

func (s *SponsorshipService) cacheKey(id string) string {
	return fmt.Sprintf("sponsorship:%d:%s", s.generation.Load(), id)
}

// invalidateAll retires every cached row after a bulk update. Other instances
// converge within the cache TTL.
func (s *SponsorshipService) invalidateAll(context.Context) {
	s.generation.Add(1)
}

func (s *SponsorshipService) Create(ctx context.Context, actor domain.Actor, in CreateSponsorshipInput) (*models.Sponsorship, error) {
	if !actor.Can(domain.CapManageSponsorship) {
		return nil, fmt.Errorf("%w: role %s cannot create sponsorships", domain.ErrForbidden, actor.Role)
	}
	businessID := in.BusinessID
	if domain.IsBusinessRole(actor.Role) {
		if actor.BusinessID == "" {
			return nil, fmt.Errorf("%w: no business bound to caller", domain.ErrForbidden)
		}
		if businessID != "" && businessID != actor.BusinessID {
			return nil, fmt.Errorf("%w: cannot create for another business", domain.ErrForbidden)
		}
		businessID = actor.BusinessID
	}
	now := s.now().UTC()
	switch {
	case businessID == "":
		return nil, fmt.Errorf("%w: businessId is required", domain.ErrInvalidConfig)
	case in.Budget <= 0 || in.DailyBudget <= 0:
		return nil, fmt.Errorf("%w: budget and dailyBudget must be positive", domain.ErrInvalidConfig)
	case in.DailyBudget > in.Budget:
		return nil, fmt.Errorf("%w: dailyBudget exceeds budget", domain.ErrInvalidConfig)
	case !in.EndDate.After(in.StartDate):
		return nil, fmt.Errorf("%w: endDate must be after startDate", domain.ErrInvalidConfig)
	case !in.EndDate.After(now):
		return nil, fmt.Errorf("%w: endDate is in the past", domain.ErrInvalidConfig)
	}
	if _, err := s.products.Get(ctx, in.ProductID); err != nil {
		return nil, fmt.Errorf("product %s: %w", in.ProductID, err)
	}
	sp := &models.Sponsorship{
		ID:            uuid.NewString(),
		ProductID:     in.ProductID,
		BusinessID:    businessID,
		Budget:        in.Budget,
		InitialBudget: in.Budget,
		DailyBudget:   in.DailyBudget,
		LastResetDay:  domain.UTCDay(now),
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		Status:        domain.SponsorshipPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.SponsorshipCreated, sp.ID, sp)
	s.log.Info("sponsorship created", zap.String("sponsorship_id", sp.ID), zap.String("business_id", businessID))
	out := sp.WithEffectiveStatus(now)
	return &out, nil
}

// Get returns the sponsorship with its derived status.
func (s *SponsorshipService) Get(ctx context.Context, id string) (*models.Sponsorship, error) {
	return s.read(ctx, id)
}

// GetForActor additionally hides other businesses' sponsorships from business roles.
func (s *SponsorshipService) GetForActor(ctx context.Context, actor domain.Actor, id string) (*models.Sponsorship, error) {
	sp, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBusiness(actor, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *SponsorshipService) read(ctx context.Context, id string) (*models.Sponsorship, error) {
	sp, err := cache.ReadThrough(ctx, s.cache, s.cacheKey(id), s.cacheTTL, func(ctx context.Context) (*models.Sponsorship, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	out := sp.WithEffectiveStatus(s.now())
	return &out, nil
}

func (s *SponsorshipService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.log.Warn("invalidate sponsorship cache", zap.String("sponsorship_id", id), zap.Error(err))
	}
}

// ListByBusiness lists one business's sponsorships. Admins pass businessID; business
// roles always see their own.
func (s *SponsorshipService) ListByBusiness(ctx context.Context, actor domain.Actor, businessID string, status domain.SponsorshipStatus, limit, offset int) ([]models.Sponsorship, error) {
	switch {
	case domain.IsBusinessRole(actor.Role):
		if actor.BusinessID == "" {
			return nil, fmt.Errorf("%w: no business bound to caller", domain.ErrForbidden)
		}
		businessID = actor.BusinessID
	case actor.Role == domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: role %s cannot list sponsorships", domain.ErrForbidden, actor.Role)
	}
	return s.list(ctx, models.SponsorshipFilter{BusinessID: businessID, Status: status, Limit: limit, Offset: offset})
}

// ListByStatus is the moderation queue view.
func (s *SponsorshipService) ListByStatus(ctx context.Context, actor domain.Actor, status domain.SponsorshipStatus, limit, offset int) ([]models.Sponsorship, error) {
	if !actor.Can(domain.CapModerateSponsorship) {
		return nil, fmt.Errorf("%w: moderation requires admin", domain.ErrForbidden)
	}
	return s.list(ctx, models.SponsorshipFilter{Status: status, Limit: limit, Offset: offset})
}

func (s *SponsorshipService) list(ctx context.Context, f models.SponsorshipFilter) ([]models.Sponsorship, error) {
	f.Now = s.now()
	f.Limit, f.Offset = repository.Page(f.Limit, f.Offset)
	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = list[i].WithEffectiveStatus(f.Now)
	}
	return list, nil
}

// Charge debits cost from an active sponsorship and pauses it when the daily
// cap or the total budget is reached.
func (s *SponsorshipService) Charge(ctx context.Context, id string, cost int64) (*models.Sponsorship, error) {
	if cost <= 0 {
		s.metrics.Charge("invalid_config")
		return nil, fmt.Errorf("%w: charge cost must be positive", domain.ErrInvalidConfig)
	}
	now := s.now().UTC()
	sp, err := s.repo.Charge(ctx, id, cost, now)
	if errors.Is(err, repository.ErrConditionFailed) && s.catchUpReset(ctx, id, now) {
		sp, err = s.repo.Charge(ctx, id, cost, now)
	}
	if err != nil {
		err = s.classifyChargeFailure(ctx, id, cost, now, err)
		s.metrics.Charge(outcome(err))
		return nil, err
	}
	s.metrics.Charge("ok")
	s.invalidate(ctx, id)

	if reason := autoPauseReason(sp); reason != domain.PauseReasonNone {
		s.autoPause(ctx, sp, reason, now)
	}
	out := sp.WithEffectiveStatus(now)
	return &out, nil
}

// catchUpReset runs the daily reset when the row still carries yesterday's spend,
// covering the gap between UTC midnight and the scheduled job.
func (s *SponsorshipService) catchUpReset(ctx context.Context, id string, now time.Time) bool {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil || cur.LastResetDay >= domain.UTCDay(now) {
		return false
	}
	if _, err := s.ResetDaily(ctx); err != nil {
		s.log.Warn("catch-up daily reset", zap.String("sponsorship_id", id), zap.Error(err))
		return false
	}
	return true
}

func (s *SponsorshipService) classifyChargeFailure(ctx context.Context, id string, cost int64, now time.Time, err error) error {
	if !errors.Is(err, repository.ErrConditionFailed) {
		return err
	}
	cur, gerr := s.repo.GetByID(ctx, id)
	if gerr != nil {
		return gerr
	}
	if cost > cur.Budget || cur.SpentToday+cost > cur.DailyBudget {
		return fmt.Errorf("%w: sponsorship %s has %d remaining, %d/%d spent today, charge %d",
			domain.ErrBudgetExhausted, id, cur.Budget, cur.SpentToday, cur.DailyBudget, cost)
	}
	return fmt.Errorf("%w: sponsorship %s is %s", domain.ErrInvalidState, id, cur.EffectiveStatus(now))
}

func statusEvent(id, businessID, reason, actorID string) map[string]string {
	return map[string]string{"sponsorshipId": id, "businessId": businessID, "reason": reason, "actor": actorID}
}

func autoPauseReason(sp *models.Sponsorship) string {
	switch {
	case sp.Budget == 0:
		return domain.PauseReasonBudgetDepleted
	case sp.SpentToday >= sp.DailyBudget:
		return domain.PauseReasonDailyCap
	}
	return domain.PauseReasonNone
}

func (s *SponsorshipService) autoPause(ctx context.Context, sp *models.Sponsorship, reason string, now time.Time) {
	ok, err := s.repo.Transition(ctx, sp.ID, repository.StatusChange{
		From:        []domain.SponsorshipStatus{domain.SponsorshipActive},
		To:          domain.SponsorshipPaused,
		PauseReason: reason,
		At:          now,
	})
	if err != nil {
		s.log.Error("auto-pause sponsorship", zap.String("sponsorship_id", sp.ID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	sp.Status = domain.SponsorshipPaused
	sp.PauseReason = reason
	sp.UpdatedAt = now
	s.invalidate(ctx, sp.ID)
	s.log.Info("sponsorship auto-paused", zap.String("sponsorship_id", sp.ID), zap.String("reason", reason))
	s.bus.Emit(ctx, events.SponsorshipPaused, sp.ID, statusEvent(sp.ID, sp.BusinessID, reason, ""))
	s.notifier.NotifySponsorshipPaused(ctx, sp, reason)
}

// ChargeProduct charges the first active sponsorship of productID that can
// absorb cost. It returns nil, nil when the product has no active sponsorship.
func (s *SponsorshipService) ChargeProduct(ctx context.Context, productID string, cost int64) (*models.Sponsorship, error) {
	active, err := s.repo.List(ctx, models.SponsorshipFilter{ProductID: productID, Status: domain.SponsorshipActive, Now: s.now()})
	if err != nil {
		return nil, err
	}
	var lastErr error
	for i := len(active) - 1; i >= 0; i-- { // oldest first
		sp, err := s.Charge(ctx, active[i].ID, cost)
		if err == nil {
			return sp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *SponsorshipService) Pause(ctx context.Context, actor domain.Actor, id string) (*models.Sponsorship, error) {
	cur, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if st := cur.EffectiveStatus(now); st != domain.SponsorshipActive {
		return nil, fmt.Errorf("%w: cannot pause a %s sponsorship", domain.ErrInvalidState, st)
	}
	sp, err := s.transition(ctx, id, repository.StatusChange{
		From:            []domain.SponsorshipStatus{domain.SponsorshipActive},
		To:              domain.SponsorshipPaused,
		PauseReason:     domain.PauseReasonManual,
		RequireInWindow: true,
		At:              now,
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.SponsorshipPaused, id, statusEvent(id, sp.BusinessID, domain.PauseReasonManual, actor.UserID))
	return sp, nil
}

// Resume reactivates a manual pause. Automatic pauses clear on the daily reset.
func (s *SponsorshipService) Resume(ctx context.Context, actor domain.Actor, id string) (*models.Sponsorship, error) {
	cur, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if st := cur.EffectiveStatus(now); st != domain.SponsorshipPaused || cur.PauseReason != domain.PauseReasonManual {
		return nil, fmt.Errorf("%w: only manually paused sponsorships can be resumed (status %s, reason %q)",
			domain.ErrInvalidState, st, cur.PauseReason)
	}
	if cur.Budget <= 0 {
		return nil, fmt.Errorf("%w: sponsorship %s has no budget left", domain.ErrBudgetExhausted, id)
	}
	manual := domain.PauseReasonManual
	sp, err := s.transition(ctx, id, repository.StatusChange{
		From:            []domain.SponsorshipStatus{domain.SponsorshipPaused},
		FromReason:      &manual,
		To:              domain.SponsorshipActive,
		PauseReason:     domain.PauseReasonNone,
		RequireInWindow: true,
		At:              now,
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.SponsorshipResumed, id, statusEvent(id, sp.BusinessID, "", actor.UserID))
	return sp, nil
}

func (s *SponsorshipService) Approve(ctx context.Context, actor domain.Actor, id string) (*models.Sponsorship, error) {
	if !actor.Can(domain.CapModerateSponsorship) {
		return nil, fmt.Errorf("%w: approval requires admin", domain.ErrForbidden)
	}
	now := s.now().UTC()
	if err := s.requirePending(ctx, id, now); err != nil {
		return nil, err
	}
	sp, err := s.transition(ctx, id, repository.StatusChange{
		From:          []domain.SponsorshipStatus{domain.SponsorshipPending},
		To:            domain.SponsorshipApproved,
		StampApproved: true,
		At:            now,
	})
	if err != nil {
		return nil, err
	}
	if !sp.StartDate.After(now) {
		ok, err := s.repo.Transition(ctx, id, repository.StatusChange{
			From:            []domain.SponsorshipStatus{domain.SponsorshipApproved},
			To:              domain.SponsorshipActive,
			RequireInWindow: true,
			At:              now,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			sp.Status = domain.SponsorshipActive
			s.invalidate(ctx, id)
		}
	}
	s.log.Info("sponsorship approved", zap.String("sponsorship_id", id), zap.String("status", string(sp.Status)))
	s.bus.Emit(ctx, events.SponsorshipApproved, id, sp)
	s.notifier.NotifySponsorshipApproved(ctx, sp)
	return sp, nil
}

func (s *SponsorshipService) Reject(ctx context.Context, actor domain.Actor, id string) (*models.Sponsorship, error) {
	if !actor.Can(domain.CapModerateSponsorship) {
		return nil, fmt.Errorf("%w: rejection requires admin", domain.ErrForbidden)
	}
	now := s.now().UTC()
	if err := s.requirePending(ctx, id, now); err != nil {
		return nil, err
	}
	sp, err := s.transition(ctx, id, repository.StatusChange{
		From: []domain.SponsorshipStatus{domain.SponsorshipPending},
		To:   domain.SponsorshipRejected,
		At:   now,
	})
	if err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.SponsorshipRejected, id, sp)
	s.notifier.NotifySponsorshipRejected(ctx, sp)
	return sp, nil
}

func (s *SponsorshipService) requirePending(ctx context.Context, id string, now time.Time) error {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if st := cur.EffectiveStatus(now); st != domain.SponsorshipPending {
		return fmt.Errorf("%w: sponsorship %s is %s, not PENDING", domain.ErrInvalidState, id, st)
	}
	return nil
}

// transition applies change and returns the fresh row; a lost race is InvalidState.
func (s *SponsorshipService) transition(ctx context.Context, id string, change repository.StatusChange) (*models.Sponsorship, error) {
	ok, err := s.repo.Transition(ctx, id, change)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	if !ok {
		return nil, fmt.Errorf("%w: sponsorship %s changed concurrently", domain.ErrInvalidState, id)
	}
	sp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := sp.WithEffectiveStatus(change.At)
	return &out, nil
}

func (s *SponsorshipService) authorizeManage(ctx context.Context, actor domain.Actor, id string) (*models.Sponsorship, error) {
	if !actor.Can(domain.CapManageSponsorship) {
		return nil, fmt.Errorf("%w: role %s cannot manage sponsorships", domain.ErrForbidden, actor.Role)
	}
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBusiness(actor, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func authorizeBusiness(actor domain.Actor, sp *models.Sponsorship) error {
	if domain.IsBusinessRole(actor.Role) && sp.BusinessID != actor.BusinessID {
		return fmt.Errorf("%w: sponsorship belongs to another business", domain.ErrForbidden)
	}
	if !domain.IsBusinessRole(actor.Role) && actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSystem {
		return fmt.Errorf("%w: role %s cannot view sponsorships", domain.ErrForbidden, actor.Role)
	}
	return nil
}

// ResetResult reports one daily reset run.
type ResetResult struct {
	Day     string `json:"day"`
	Reset   int64  `json:"reset"`
	Resumed int64  `json:"resumed"`
}

// ResetDaily starts a new UTC budget day. Running it twice on the same day changes nothing.
func (s *SponsorshipService) ResetDaily(ctx context.Context) (ResetResult, error) {
	now := s.now().UTC()
	day := domain.UTCDay(now)
	reset, resumed, err := s.repo.ResetDaily(ctx, day, now)
	if err != nil {
		return ResetResult{}, err
	}
	if reset > 0 {
		s.log.Info("daily budgets reset", zap.String("day", day), zap.Int64("reset", reset), zap.Int64("resumed", resumed))
	}
	if resumed > 0 {
		s.invalidateAll(ctx)
		s.bus.Emit(ctx, events.SponsorshipResumed, day, ResetResult{Day: day, Reset: reset, Resumed: resumed})
	}
	return ResetResult{Day: day, Reset: reset, Resumed: resumed}, nil
}

// ActivateDue moves approved sponsorships whose start date has passed to ACTIVE.
func (s *SponsorshipService) ActivateDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ActivateDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidateAll(ctx)
		s.log.Info("sponsorships activated", zap.Int64("count", n))
	}
	return n, nil
}

// outcome is the metric label for a ledger error.
func outcome(err error) string {
	if code := domain.Code(err); code != "INTERNAL" {
		return strings.ToLower(code)
	}
	return "error"
}
