package service

import (
	"context"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"
)

const (
	defaultMetricDays = 30
	maxMetricDays     = 90
)

// StatsService derives influencer dashboards from attribution rows.
type StatsService struct {
	attributions repository.AttributionStore
	window       time.Duration
	now          func() time.Time
}

func NewStatsService(attributions repository.AttributionStore, window time.Duration) *StatsService {
	return &StatsService{attributions: attributions, window: window, now: time.Now}
}

func (s *StatsService) SetClock(now func() time.Time) { s.now = now }

func (s *StatsService) Stats(ctx context.Context, influencerID string) (*models.InfluencerStats, error) {
	totals, err := s.attributions.TotalsByStatus(ctx, influencerID)
	if err != nil {
		return nil, err
	}
	stats := &models.InfluencerStats{}
	for _, t := range totals {
		// Every attribution started life as a click.
		stats.TotalClicks += t.Count
		switch t.Status {
		case domain.AttributionConversion:
			stats.TotalConversions += t.Count
			stats.PendingEarnings += t.Commission
		case domain.AttributionPaid:
			stats.TotalConversions += t.Count
			stats.PaidEarnings += t.Commission
		}
	}
	stats.TotalEarnings = stats.PendingEarnings + stats.PaidEarnings
	return stats, nil
}

// Metrics returns one point per UTC day for the last days days, oldest first,
// with empty days zero-filled. days is clamped to [1, 90]; 0 means 30.
func (s *StatsService) Metrics(ctx context.Context, influencerID string, days int) ([]models.MetricPoint, error) {
	switch {
	case days <= 0:
		days = defaultMetricDays
	case days > maxMetricDays:
		days = maxMetricDays
	}
	today := startOfDay(s.now())
	start := today.AddDate(0, 0, -(days - 1))

	// Rows clicked before the range can still convert inside it.
	rows, err := s.attributions.List(ctx, models.AttributionFilter{InfluencerID: influencerID, Since: start.Add(-s.window)})
	if err != nil {
		return nil, err
	}

	points := make([]models.MetricPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		day := domain.UTCDay(start.AddDate(0, 0, i))
		points[i].Date = day
		index[day] = i
	}
	for _, a := range rows {
		if i, ok := index[domain.UTCDay(a.ClickedAt)]; ok {
			points[i].Clicks++
		}
		if a.ConvertedAt == nil {
			continue
		}
		if i, ok := index[domain.UTCDay(*a.ConvertedAt)]; ok {
			points[i].Conversions++
			points[i].Earnings += a.Commission()
		}
	}
	return points, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
