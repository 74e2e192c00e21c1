package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
)

type LinkStore struct{ *Store }

func (s *LinkStore) Create(_ context.Context, link *models.AffiliateLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ID]; ok {
		return fmt.Errorf("%w: affiliate link %s", domain.ErrConflict, link.ID)
	}
	for _, l := range s.links {
		if l.ReferralCode == link.ReferralCode {
			return fmt.Errorf("%w: referral code %s", domain.ErrConflict, link.ReferralCode)
		}
		if l.InfluencerID == link.InfluencerID && l.ProductID == link.ProductID {
			return fmt.Errorf("%w: influencer %s already links product %s", domain.ErrConflict, link.InfluencerID, link.ProductID)
		}
	}
	s.links[link.ID] = *link
	return nil
}

func (s *LinkStore) GetByID(_ context.Context, id string) (*models.AffiliateLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (s *LinkStore) GetByCode(_ context.Context, code string) (*models.AffiliateLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ReferralCode == code {
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *LinkStore) ListByInfluencer(_ context.Context, influencerID string) ([]models.AffiliateLink, error) {
	list := s.filter(func(l models.AffiliateLink) bool { return l.InfluencerID == influencerID })
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *LinkStore) ListByProduct(_ context.Context, productID string) ([]models.AffiliateLink, error) {
	return s.filter(func(l models.AffiliateLink) bool { return l.ProductID == productID }), nil
}

// filter returns matches in id order.
func (s *LinkStore) filter(keep func(models.AffiliateLink) bool) []models.AffiliateLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []models.AffiliateLink{}
	for _, id := range sortedKeys(s.links) {
		if l := s.links[id]; keep(l) {
			list = append(list, l)
		}
	}
	return list
}

func (s *LinkStore) SetActive(_ context.Context, id string, active bool, now time.Time) error {
	return s.mutate(id, func(l *models.AffiliateLink) {
		l.IsActive = active
		l.UpdatedAt = now
	})
}

func (s *LinkStore) IncrementClicks(_ context.Context, id string, now time.Time) error {
	return s.mutate(id, func(l *models.AffiliateLink) {
		l.Clicks++
		l.UpdatedAt = now
	})
}

func (s *LinkStore) IncrementConversions(_ context.Context, id string, now time.Time) error {
	return s.mutate(id, func(l *models.AffiliateLink) {
		l.Conversions++
		l.UpdatedAt = now
	})
}

func (s *LinkStore) mutate(id string, fn func(*models.AffiliateLink)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&l)
	s.links[id] = l
	return nil
}
