package models

// InfluencerStats is derived from attribution rows and never stored.
type InfluencerStats struct {
	TotalClicks      int64 `json:"totalClicks"`
	TotalConversions int64 `json:"totalConversions"`
	TotalEarnings    int64 `json:"totalEarnings"`
	PendingEarnings  int64 `json:"pendingEarnings"`
	PaidEarnings     int64 `json:"paidEarnings"`
}

// MetricPoint is one UTC day of an influencer's activity.
type MetricPoint struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
	Earnings    int64  `json:"earnings"`
}
