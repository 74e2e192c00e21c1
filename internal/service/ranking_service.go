package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"promoledger/config"
	"promoledger/internal/cache"
	"promoledger/internal/domain"
	"promoledger/internal/events"
	"promoledger/internal/models"
	"promoledger/internal/ranking"
	"promoledger/internal/repository"

	"go.uber.org/zap"
)

// RankingService recomputes product ranking scores on a schedule and serves
// the ranked storefront listings.
type RankingService struct {
	products     repository.ProductStore
	sponsorships repository.SponsorshipStore
	links        repository.AffiliateLinkStore
	attributions repository.AttributionStore
	params       ranking.Params
	cache        cache.Cache
	cacheTTL     time.Duration
	bus          *events.Bus
	log          *zap.Logger
	now          func() time.Time
}

func RankingParams(cfg config.RankingConfig) ranking.Params {
	return ranking.Params{
		Weights: ranking.Weights{
			Sponsored:  cfg.SponsoredWeight,
			Conversion: cfg.ConversionWeight,
			Recency:    cfg.RecencyWeight,
		},
		SpendNormalizer: cfg.SpendNormalizer,
		ConversionPrior: cfg.ConversionPrior,
		HalfLife:        cfg.RecencyHalfLife,
	}
}

func NewRankingService(stores repository.Stores, params ranking.Params, c cache.Cache, cacheTTL time.Duration, bus *events.Bus, log *zap.Logger) *RankingService {
	if c == nil {
		c = cache.Nop{}
	}
	return &RankingService{
		products:     stores.Products,
		sponsorships: stores.Sponsorships,
		links:        stores.Links,
		attributions: stores.Attributions,
		params:       params,
		cache:        c,
		cacheTTL:     cacheTTL,
		bus:          bus,
		log:          log,
		now:          time.Now,
	}
}

func (s *RankingService) SetClock(now func() time.Time) { s.now = now }

// Snapshot gathers the inputs of one product's score as of asOf.
func (s *RankingService) Snapshot(ctx context.Context, productID string, asOf time.Time) (ranking.Snapshot, error) {
	snap := ranking.Snapshot{ProductID: productID, AsOf: asOf}
	active, err := s.sponsorships.List(ctx, models.SponsorshipFilter{ProductID: productID, Status: domain.SponsorshipActive, Now: asOf})
	if err != nil {
		return snap, err
	}
	for _, sp := range active {
		if sp.Budget > 0 && sp.EffectiveStatus(asOf) == domain.SponsorshipActive {
			snap.ActiveDailyBudget += sp.DailyBudget
		}
	}
	links, err := s.links.ListByProduct(ctx, productID)
	if err != nil {
		return snap, err
	}
	for _, l := range links {
		snap.Clicks += l.Clicks
		snap.Conversions += l.Conversions
	}
	if snap.LastActivityAt, err = s.attributions.LastActivity(ctx, productID); err != nil {
		return snap, err
	}
	return snap, nil
}

// RecomputeScore scores one product and stores the result.
func (s *RankingService) RecomputeScore(ctx context.Context, productID string) (ranking.Result, error) {
	return s.recompute(ctx, productID, s.now().UTC())
}

func (s *RankingService) recompute(ctx context.Context, productID string, asOf time.Time) (ranking.Result, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return ranking.Result{}, fmt.Errorf("product %s: %w", productID, err)
	}
	snap, err := s.Snapshot(ctx, productID, asOf)
	if err != nil {
		return ranking.Result{}, err
	}
	res := ranking.Score(s.params, snap)
	err = s.products.UpdateScores(ctx, models.ProductScores{
		ProductID:       productID,
		SponsoredScore:  res.Sponsored,
		PopularityScore: res.Popularity,
		RankingScore:    res.Score,
		ScoredAt:        asOf,
	})
	if err != nil {
		return ranking.Result{}, err
	}
	return res, nil
}

// RecomputeAll rescores every product against one asOf instant and returns the
// results in ranking order. Re-running it on unchanged data writes the same scores.
func (s *RankingService) RecomputeAll(ctx context.Context) ([]ranking.Result, error) {
	ids, err := s.products.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	asOf := s.now().UTC()
	results := make([]ranking.Result, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.recompute(ctx, id, asOf)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	ranking.Sort(results)
	s.log.Info("ranking recomputed", zap.Int("products", len(results)))
	s.bus.Emit(ctx, events.RankingRecomputed, domain.UTCDay(asOf), map[string]interface{}{
		"products": len(results),
		"asOf":     asOf,
	})
	return results, nil
}

func (s *RankingService) Homepage(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return s.ranked(ctx, models.ProductFilter{Limit: limit, Offset: offset})
}

func (s *RankingService) Category(ctx context.Context, slug string, limit, offset int) ([]models.Product, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: category slug is required", domain.ErrInvalidConfig)
	}
	return s.ranked(ctx, models.ProductFilter{CategorySlug: slug, Limit: limit, Offset: offset})
}

func (s *RankingService) Search(ctx context.Context, query string, limit, offset int) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrInvalidConfig)
	}
	return s.ranked(ctx, models.ProductFilter{Query: query, Limit: limit, Offset: offset})
}

func (s *RankingService) ranked(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	f.Limit, f.Offset = repository.Page(f.Limit, f.Offset)
	key := fmt.Sprintf("ranking:%s:%s:%d:%d", f.CategorySlug, strings.ToLower(f.Query), f.Limit, f.Offset)
	return cache.ReadThrough(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]models.Product, error) {
		return s.products.ListRanked(ctx, f)
	})
}
