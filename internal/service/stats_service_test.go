package service

import (
	"testing"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"github.com/stretchr/testify/require"
)

func TestInfluencerStats(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	link := f.link(t, "p-1")
	for i := 0; i < 4; i++ {
		f.click(t, link)
	}
	first, err := f.attributions.RecordConversion(f.ctx, ConversionInput{LinkID: link.ID, OrderID: "o-1", OrderAmount: 1000})
	require.NoError(err)
	_, err = f.attributions.RecordConversion(f.ctx, ConversionInput{LinkID: link.ID, OrderID: "o-2", OrderAmount: 3000})
	require.NoError(err)
	_, err = f.attributions.MarkPaid(f.ctx, admin, first.ID)
	require.NoError(err)

	stats, err := f.stats.Stats(f.ctx, influencer.UserID)
	require.NoError(err)
	require.Equal(models.InfluencerStats{
		TotalClicks:      4,
		TotalConversions: 2,
		TotalEarnings:    200,
		PendingEarnings:  150,
		PaidEarnings:     50,
	}, *stats)

	empty, err := f.stats.Stats(f.ctx, "nobody")
	require.NoError(err)
	require.Equal(models.InfluencerStats{}, *empty)
}

func TestInfluencerMetrics(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	link := f.link(t, "p-1")

	// Clicked two days ago, converted today.
	f.advance(-48 * time.Hour)
	f.click(t, link)
	f.advance(48 * time.Hour)
	f.click(t, link)
	_, err := f.attributions.RecordConversion(f.ctx, ConversionInput{LinkID: link.ID, OrderID: "o-1", OrderAmount: 1000})
	require.NoError(err)

	points, err := f.stats.Metrics(f.ctx, influencer.UserID, 3)
	require.NoError(err)
	require.Len(points, 3)
	today := domain.UTCDay(f.clock())
	require.Equal(today, points[2].Date)
	require.Equal(domain.UTCDay(f.clock().AddDate(0, 0, -2)), points[0].Date)

	require.Equal(int64(1), points[0].Clicks)
	require.Zero(points[1].Clicks)
	require.Equal(int64(1), points[2].Clicks)
	require.Equal(int64(1), points[2].Conversions)
	require.Equal(int64(50), points[2].Earnings)
}

func TestInfluencerMetricsClampsDays(t *testing.T) {
	f := newFixture(t)

	points, err := f.stats.Metrics(f.ctx, influencer.UserID, 0)
	require.NoError(t, err)
	require.Len(t, points, 30)

	points, err = f.stats.Metrics(f.ctx, influencer.UserID, 365)
	require.NoError(t, err)
	require.Len(t, points, 90)
}
