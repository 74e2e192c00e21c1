package memory

import (
	"context"
	"sort"
	"strings"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"
)

type ProductStore struct{ *Store }

func (s *ProductStore) Get(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *ProductStore) Upsert(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.products[p.ID]; ok {
		cur.Name = p.Name
		cur.CategorySlug = p.CategorySlug
		cur.UpdatedAt = p.UpdatedAt
		s.products[p.ID] = cur
		return nil
	}
	s.products[p.ID] = *p
	return nil
}

func (s *ProductStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.products), nil
}

func (s *ProductStore) UpdateScores(_ context.Context, sc models.ProductScores) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[sc.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	at := sc.ScoredAt
	p.SponsoredScore = sc.SponsoredScore
	p.PopularityScore = sc.PopularityScore
	p.RankingScore = sc.RankingScore
	p.ScoredAt = &at
	s.products[sc.ProductID] = p
	return nil
}

func (s *ProductStore) ListRanked(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	term := strings.ToLower(strings.TrimSpace(f.Query))
	s.mu.Lock()
	list := []models.Product{}
	for _, p := range s.products {
		if f.CategorySlug != "" && p.CategorySlug != f.CategorySlug {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		list = append(list, p)
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].RankingScore != list[j].RankingScore {
			return list[i].RankingScore > list[j].RankingScore
		}
		return list[i].ID < list[j].ID
	})
	limit, offset := repository.Page(f.Limit, f.Offset)
	return window(list, limit, offset), nil
}
