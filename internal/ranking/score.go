// Package ranking computes the bounded product ranking score from a snapshot
// of sponsorship spend and affiliate performance.
package ranking

import (
	"math"
	"sort"
	"time"
)

type Weights struct {
	Sponsored  float64
	Conversion float64
	Recency    float64
}

type Params struct {
	Weights Weights
	// SpendNormalizer is the active daily budget that saturates the sponsored signal.
	SpendNormalizer int64
	// ConversionPrior damps conversion rates of products with few clicks.
	ConversionPrior float64
	HalfLife        time.Duration
}

// Snapshot is everything a score depends on. Equal snapshots give equal scores.
type Snapshot struct {
	ProductID         string
	ActiveDailyBudget int64
	Clicks            int64
	Conversions       int64
	LastActivityAt    *time.Time
	AsOf              time.Time
}

// Result scores are in [0, 100], rounded to 4 decimals.
type Result struct {
	ProductID  string  `json:"productId"`
	Score      float64 `json:"score"`
	Sponsored  float64 `json:"sponsoredScore"`
	Popularity float64 `json:"popularityScore"`
}

func Score(p Params, s Snapshot) Result {
	sponsored := 0.0
	if p.SpendNormalizer > 0 && s.ActiveDailyBudget > 0 {
		sponsored = math.Min(1, float64(s.ActiveDailyBudget)/float64(p.SpendNormalizer))
	}

	conversion := 0.0
	if denom := float64(s.Clicks) + p.ConversionPrior; denom > 0 && s.Conversions > 0 {
		conversion = math.Min(1, float64(s.Conversions)/denom)
	}

	recency := 0.0
	if s.LastActivityAt != nil && p.HalfLife > 0 {
		age := s.AsOf.Sub(*s.LastActivityAt)
		if age < 0 {
			age = 0
		}
		recency = math.Pow(0.5, age.Hours()/p.HalfLife.Hours())
	}

	w := p.Weights
	res := Result{ProductID: s.ProductID, Sponsored: round4(100 * sponsored)}
	if total := w.Sponsored + w.Conversion + w.Recency; total > 0 {
		res.Score = round4(100 * (w.Sponsored*sponsored + w.Conversion*conversion + w.Recency*recency) / total)
	}
	if pop := w.Conversion + w.Recency; pop > 0 {
		res.Popularity = round4(100 * (w.Conversion*conversion + w.Recency*recency) / pop)
	}
	return res
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Less orders by score descending, then product id ascending.
func Less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ProductID < b.ProductID
}

// Sort orders results in place, deterministically.
func Sort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return Less(results[i], results[j]) })
}
