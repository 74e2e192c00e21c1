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

type AttributionStore struct{ *Store }

func (s *AttributionStore) Create(_ context.Context, a *models.Attribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attributions[a.ID]; ok {
		return fmt.Errorf("%w: attribution %s", domain.ErrConflict, a.ID)
	}
	if a.OrderID != nil && s.byLinkAndOrder(a.LinkID, *a.OrderID) != nil {
		return fmt.Errorf("%w: order %s already attributed", domain.ErrConflict, *a.OrderID)
	}
	s.attributions[a.ID] = *a
	return nil
}

func (s *AttributionStore) byLinkAndOrder(linkID, orderID string) *models.Attribution {
	for _, a := range s.attributions {
		if a.LinkID == linkID && a.OrderID != nil && *a.OrderID == orderID {
			return &a
		}
	}
	return nil
}

func (s *AttributionStore) GetByID(_ context.Context, id string) (*models.Attribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attributions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *AttributionStore) GetByLinkAndOrder(_ context.Context, linkID, orderID string) (*models.Attribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.byLinkAndOrder(linkID, orderID); a != nil {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (s *AttributionStore) ListOpenClicks(_ context.Context, linkID string, since time.Time, limit int) ([]models.Attribution, error) {
	s.mu.Lock()
	var list []models.Attribution
	for _, a := range s.attributions {
		if a.LinkID == linkID && a.Status == domain.AttributionClick && a.OrderID == nil && !a.ClickedAt.Before(since) {
			list = append(list, a)
		}
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ClickedAt.Equal(list[j].ClickedAt) {
			return list[i].ClickedAt.After(list[j].ClickedAt)
		}
		return list[i].ID > list[j].ID
	})
	return window(list, limit, 0), nil
}

func (s *AttributionStore) Convert(_ context.Context, id string, c repository.Conversion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attributions[id]
	if !ok || a.Status != domain.AttributionClick || a.OrderID != nil {
		return false, nil
	}
	if s.byLinkAndOrder(a.LinkID, c.OrderID) != nil {
		return false, fmt.Errorf("%w: order %s already attributed", domain.ErrConflict, c.OrderID)
	}
	orderID, amount, commission, rate, at := c.OrderID, c.OrderAmount, c.CommissionAmount, c.RateBps, c.At
	a.Status = domain.AttributionConversion
	a.OrderID = &orderID
	a.OrderAmount = &amount
	a.CommissionAmount = &commission
	a.RateBps = &rate
	a.ConvertedAt = &at
	a.UpdatedAt = at
	s.attributions[id] = a
	return true, nil
}

func (s *AttributionStore) MarkPaid(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attributions[id]
	if !ok || a.Status != domain.AttributionConversion {
		return false, nil
	}
	a.Status = domain.AttributionPaid
	a.PaidAt = &at
	a.UpdatedAt = at
	s.attributions[id] = a
	return true, nil
}

func matches(a models.Attribution, f models.AttributionFilter) bool {
	if f.InfluencerID != "" && a.InfluencerID != f.InfluencerID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return f.Since.IsZero() || !a.CreatedAt.Before(f.Since)
}

func (s *AttributionStore) List(_ context.Context, f models.AttributionFilter) ([]models.Attribution, error) {
	s.mu.Lock()
	list := []models.Attribution{}
	for _, a := range s.attributions {
		if matches(a, f) {
			list = append(list, a)
		}
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return window(list, f.Limit, f.Offset), nil
}

func (s *AttributionStore) Count(_ context.Context, f models.AttributionFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.attributions {
		if matches(a, f) {
			n++
		}
	}
	return n, nil
}

func (s *AttributionStore) TotalsByStatus(_ context.Context, influencerID string) ([]models.StatusTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[domain.AttributionStatus]*models.StatusTotal{}
	for _, a := range s.attributions {
		if a.InfluencerID != influencerID {
			continue
		}
		t, ok := totals[a.Status]
		if !ok {
			t = &models.StatusTotal{Status: a.Status}
			totals[a.Status] = t
		}
		t.Count++
		t.Commission += a.Commission()
	}
	rows := make([]models.StatusTotal, 0, len(totals))
	for _, status := range []domain.AttributionStatus{domain.AttributionClick, domain.AttributionConversion, domain.AttributionPaid} {
		if t, ok := totals[status]; ok {
			rows = append(rows, *t)
		}
	}
	return rows, nil
}

func (s *AttributionStore) LastActivity(_ context.Context, productID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for _, a := range s.attributions {
		if a.ProductID != productID {
			continue
		}
		if last == nil || a.UpdatedAt.After(*last) {
			t := a.UpdatedAt
			last = &t
		}
	}
	return last, nil
}
