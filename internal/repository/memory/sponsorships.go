package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"
)

type SponsorshipStore struct{ *Store }

func (s *SponsorshipStore) Create(_ context.Context, sp *models.Sponsorship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sponsorships[sp.ID]; ok {
		return fmt.Errorf("%w: sponsorship %s", domain.ErrConflict, sp.ID)
	}
	s.sponsorships[sp.ID] = *sp
	return nil
}

func (s *SponsorshipStore) GetByID(_ context.Context, id string) (*models.Sponsorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sponsorships[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sp, nil
}

func (s *SponsorshipStore) List(_ context.Context, f models.SponsorshipFilter) ([]models.Sponsorship, error) {
	s.mu.Lock()
	list := []models.Sponsorship{}
	for _, sp := range s.sponsorships {
		if f.BusinessID != "" && sp.BusinessID != f.BusinessID {
			continue
		}
		if f.ProductID != "" && sp.ProductID != f.ProductID {
			continue
		}
		if f.Status != "" && sp.EffectiveStatus(f.Now) != f.Status {
			continue
		}
		list = append(list, sp)
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return window(list, f.Limit, f.Offset), nil
}

func (s *SponsorshipStore) Charge(_ context.Context, id string, cost int64, now time.Time) (*models.Sponsorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sponsorships[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sp.Status != domain.SponsorshipActive || !sp.InWindow(now) ||
		sp.Budget < cost || sp.SpentToday+cost > sp.DailyBudget {
		return nil, repository.ErrConditionFailed
	}
	sp.Budget -= cost
	sp.SpentToday += cost
	sp.UpdatedAt = now
	s.sponsorships[id] = sp
	return &sp, nil
}

func (s *SponsorshipStore) Transition(_ context.Context, id string, change repository.StatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sponsorships[id]
	if !ok || !statusIn(sp.Status, change.From) {
		return false, nil
	}
	if change.FromReason != nil && sp.PauseReason != *change.FromReason {
		return false, nil
	}
	if change.RequireInWindow && !sp.InWindow(change.At) {
		return false, nil
	}
	sp.Status = change.To
	sp.PauseReason = change.PauseReason
	sp.UpdatedAt = change.At
	if change.StampApproved {
		at := change.At
		sp.ApprovedAt = &at
	}
	s.sponsorships[id] = sp
	return true, nil
}

func statusIn(status domain.SponsorshipStatus, set []domain.SponsorshipStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (s *SponsorshipStore) ResetDaily(_ context.Context, day string, now time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reset, resumed int64
	for id, sp := range s.sponsorships {
		if sp.LastResetDay >= day {
			continue
		}
		if sp.Status == domain.SponsorshipPaused && sp.PauseReason == domain.PauseReasonDailyCap &&
			sp.Budget > 0 && !now.After(sp.EndDate) {
			sp.Status = domain.SponsorshipActive
			sp.PauseReason = domain.PauseReasonNone
			resumed++
		}
		sp.SpentToday = 0
		sp.LastResetDay = day
		sp.UpdatedAt = now
		s.sponsorships[id] = sp
		reset++
	}
	return reset, resumed, nil
}

func (s *SponsorshipStore) ActivateDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sp := range s.sponsorships {
		if sp.Status == domain.SponsorshipApproved && sp.InWindow(now) {
			sp.Status = domain.SponsorshipActive
			sp.UpdatedAt = now
			s.sponsorships[id] = sp
			n++
		}
	}
	return n, nil
}
