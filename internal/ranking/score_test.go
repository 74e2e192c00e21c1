package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var params = Params{
	Weights:         Weights{Sponsored: 0.5, Conversion: 0.3, Recency: 0.2},
	SpendNormalizer: 10000,
	ConversionPrior: 10,
	HalfLife:        72 * time.Hour,
}

func TestScoreComponents(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := asOf.Add(-72 * time.Hour)

	res := Score(params, Snapshot{
		ProductID:         "p1",
		ActiveDailyBudget: 5000,
		Clicks:            90,
		Conversions:       10,
		LastActivityAt:    &last,
		AsOf:              asOf,
	})
	// S = 0.5, C = 10/100 = 0.1, R = 0.5
	require.Equal(50.0, res.Sponsored)
	require.InDelta(26.0, res.Popularity, 1e-9)
	require.InDelta(38.0, res.Score, 1e-9)
}

func TestScoreBounded(t *testing.T) {
	require := require.New(t)
	asOf := time.Now().UTC()
	future := asOf.Add(time.Hour)

	top := Score(params, Snapshot{ProductID: "p", ActiveDailyBudget: 1 << 40, Clicks: 0, Conversions: 1 << 30, LastActivityAt: &future, AsOf: asOf})
	require.Equal(100.0, top.Score)
	require.Equal(100.0, top.Sponsored)
	require.Equal(100.0, top.Popularity)

	empty := Score(params, Snapshot{ProductID: "p", AsOf: asOf})
	require.Zero(empty.Score)
	require.Zero(empty.Popularity)
}

func TestScoreDeterministic(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := asOf.Add(-13 * time.Hour)
	snap := Snapshot{ProductID: "p", ActiveDailyBudget: 1234, Clicks: 77, Conversions: 3, LastActivityAt: &last, AsOf: asOf}
	require.Equal(Score(params, snap), Score(params, snap))
}

func TestSortTieBreak(t *testing.T) {
	require := require.New(t)
	build := func() []Result {
		return []Result{
			{ProductID: "p-c", Score: 10},
			{ProductID: "p-b", Score: 42},
			{ProductID: "p-a", Score: 10},
			{ProductID: "p-d", Score: 42},
		}
	}
	first, second := build(), build()
	Sort(first)
	Sort(second)
	ids := func(rs []Result) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ProductID
		}
		return out
	}
	require.Equal([]string{"p-b", "p-d", "p-a", "p-c"}, ids(first))
	require.Equal(ids(first), ids(second))
}
