package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"promoledger/internal/cache"
	"promoledger/internal/commission"
	"promoledger/internal/domain"
	"promoledger/internal/events"
	"promoledger/internal/models"
	"promoledger/internal/ranking"
	"promoledger/internal/repository"
	"promoledger/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin      = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	owner      = domain.Actor{UserID: "owner-1", Role: domain.RoleBusinessOwner, BusinessID: "biz-1"}
	otherOwner = domain.Actor{UserID: "owner-2", Role: domain.RoleBusinessOwner, BusinessID: "biz-2"}
	influencer = domain.Actor{UserID: "inf-1", Role: domain.RoleInfluencer}
	customer   = domain.Actor{UserID: "cust-1", Role: domain.RoleCustomer}
)

type fakePusher struct {
	mu    sync.Mutex
	sends []string
}

func (p *fakePusher) SendToUser(_ context.Context, token, notifType, _, _ string, _ map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, token+":"+notifType)
	return nil
}

type fixture struct {
	ctx    context.Context
	mu     sync.Mutex
	now    time.Time
	stores repository.Stores
	events *events.Memory
	pusher *fakePusher

	notifications *NotificationService
	sponsorships  *SponsorshipService
	attributions  *AttributionService
	affiliates    *AffiliateService
	stats         *StatsService
	ranking       *RankingService
}

const attributionWindow = 7 * 24 * time.Hour

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		now:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		stores: memory.New().Stores(),
		events: events.NewMemory(),
		pusher: &fakePusher{},
	}
	log := zap.NewNop()
	bus := events.NewBus(f.events, log, nil)
	rate := 500

	f.notifications = NewNotificationService(f.stores.Notifications, f.stores.DeviceTokens, f.pusher, log)
	f.notifications.now = f.clock
	f.sponsorships = NewSponsorshipService(f.stores.Sponsorships, f.stores.Products, cache.NewMemory(), time.Minute, f.notifications, bus, nil, log)
	f.sponsorships.SetClock(f.clock)
	f.attributions = NewAttributionService(AttributionDeps{
		Links:        f.stores.Links,
		Attributions: f.stores.Attributions,
		Rates:        commission.NewRates(&rate, map[string]int{"p-premium": 1000}),
		Window:       attributionWindow,
		Sponsorships: f.sponsorships,
		ClickCost:    5,
		Notifier:     f.notifications,
		Bus:          bus,
		Log:          log,
	})
	f.attributions.SetClock(f.clock)
	f.affiliates = NewAffiliateService(f.stores.Links, f.stores.Products, "https://shop.example.com", log)
	f.affiliates.now = f.clock
	f.stats = NewStatsService(f.stores.Attributions, attributionWindow)
	f.stats.SetClock(f.clock)
	f.ranking = NewRankingService(f.stores, ranking.Params{
		Weights:         ranking.Weights{Sponsored: 0.5, Conversion: 0.3, Recency: 0.2},
		SpendNormalizer: 100,
		ConversionPrior: 10,
		HalfLife:        72 * time.Hour,
	}, nil, 0, bus, log)
	f.ranking.SetClock(f.clock)

	for _, p := range []models.Product{
		{ID: "p-1", Name: "Linen Shirt", CategorySlug: "apparel"},
		{ID: "p-2", Name: "Wool Scarf", CategorySlug: "apparel"},
		{ID: "p-3", Name: "Desk Lamp", CategorySlug: "home"},
		{ID: "p-premium", Name: "Premium Watch", CategorySlug: "accessories"},
	} {
		require.NoError(t, f.stores.Products.Upsert(f.ctx, &p))
	}
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// activeSponsorship creates and approves a sponsorship that started an hour ago.
func (f *fixture) activeSponsorship(t *testing.T, productID string, budget, daily int64) *models.Sponsorship {
	t.Helper()
	sp, err := f.sponsorships.Create(f.ctx, owner, CreateSponsorshipInput{
		ProductID:   productID,
		Budget:      budget,
		DailyBudget: daily,
		StartDate:   f.clock().Add(-time.Hour),
		EndDate:     f.clock().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	sp, err = f.sponsorships.Approve(f.ctx, admin, sp.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SponsorshipActive, sp.Status)
	return sp
}

func (f *fixture) link(t *testing.T, productID string) *models.AffiliateLink {
	t.Helper()
	link, err := f.affiliates.CreateLink(f.ctx, influencer, productID)
	require.NoError(t, err)
	return link
}

func (f *fixture) click(t *testing.T, link *models.AffiliateLink) {
	t.Helper()
	_, err := f.attributions.RecordClick(f.ctx, ClickInput{ReferralCode: link.ReferralCode, ProductID: link.ProductID})
	require.NoError(t, err)
}
