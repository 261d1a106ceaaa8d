package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsReport is the aggregation result for one [From, To] window.
type AnalyticsReport struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Totals              AnalyticsTotals       `json:"totals"`
	DailySeries         []DailyBucket         `json:"daily_series"`
	CampaignPerformance []CampaignPerformance `json:"campaign_performance"`
	VerificationLatency LatencyStats          `json:"verification_latency"`
	AdminPerformance    []AdminPerformance    `json:"admin_performance"`
}

type AnalyticsTotals struct {
	Count   int64           `json:"count"`
	Sum     decimal.Decimal `json:"sum"`
	Average decimal.Decimal `json:"average"`
}

type DailyBucket struct {
	Date  string          `json:"date"` // YYYY-MM-DD in the configured zone
	Sum   decimal.Decimal `json:"sum"`
	Count int64           `json:"count"`
}

type CampaignPerformance struct {
	CampaignID int64           `json:"campaign_id"`
	Title      string          `json:"title"`
	Sum        decimal.Decimal `json:"sum"`
	Count      int64           `json:"count"`
	Average    decimal.Decimal `json:"average"`
}

type LatencyStats struct {
	MeanSeconds float64 `json:"mean_seconds"`
	Samples     int64   `json:"samples"`
}

type AdminPerformance struct {
	VerifierID int64           `json:"verifier_id"`
	Count      int64           `json:"count"`
	Sum        decimal.Decimal `json:"sum"`
}
