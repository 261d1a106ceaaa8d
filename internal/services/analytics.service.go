package services

import (
	"context"
	"sort"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/shopspring/decimal"
)

// AnalyticsReader is the aggregation read surface.
type AnalyticsReader interface {
	TotalsBetween(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error)
	CompletedBetween(ctx context.Context, from, to time.Time) ([]*model.Donation, error)
	CampaignPerformanceBetween(ctx context.Context, from, to time.Time) ([]*model.CampaignPerformance, error)
	VerifiedBetween(ctx context.Context, from, to time.Time) ([]*model.Donation, error)
}

// AnalyticsService produces fresh roll-ups per query; nothing is memoized.
// Date bucketing happens in the configured zone so a donation at 23:30
// Manila time lands on the Manila date regardless of how the database
// stores timestamps.
type AnalyticsService struct {
	reader   AnalyticsReader
	location *time.Location
}

func NewAnalyticsService(reader AnalyticsReader, location *time.Location) *AnalyticsService {
	if location == nil {
		location = time.UTC
	}
	return &AnalyticsService{reader: reader, location: location}
}

// Report aggregates the inclusive [from, to] window.
func (s *AnalyticsService) Report(ctx context.Context, from, to time.Time) (*model.AnalyticsReport, error) {
	report := &model.AnalyticsReport{From: from, To: to}

	count, sum, err := s.reader.TotalsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report.Totals = model.AnalyticsTotals{Count: count, Sum: sum}
	if count > 0 {
		report.Totals.Average = sum.Div(decimal.NewFromInt(count)).Round(2)
	}

	completed, err := s.reader.CompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report.DailySeries = s.dailySeries(from, to, completed)

	report.CampaignPerformance, err = s.campaignPerformance(ctx, from, to)
	if err != nil {
		return nil, err
	}

	verified, err := s.reader.VerifiedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report.VerificationLatency = latencyStats(verified)
	report.AdminPerformance = adminPerformance(verified)

	return report, nil
}

// ReportLastDays is the dashboard entry point: a window of n calendar days
// ending now, with boundaries snapped to local midnights.
func (s *AnalyticsService) ReportLastDays(ctx context.Context, days int) (*model.AnalyticsReport, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().In(s.location)
	to := now
	y, m, d := now.AddDate(0, 0, -(days - 1)).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.location)
	return s.Report(ctx, from, to)
}

// dailySeries buckets completed donations by local date and zero-fills every
// date in the window.
func (s *AnalyticsService) dailySeries(from, to time.Time, donations []*model.Donation) []model.DailyBucket {
	type agg struct {
		sum   decimal.Decimal
		count int64
	}
	byDate := map[string]*agg{}
	for _, d := range donations {
		key := d.CreatedAt.In(s.location).Format("2006-01-02")
		a, ok := byDate[key]
		if !ok {
			a = &agg{sum: decimal.Zero}
			byDate[key] = a
		}
		a.sum = a.sum.Add(d.Amount)
		a.count++
	}

	var series []model.DailyBucket
	start := from.In(s.location)
	end := to.In(s.location)
	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		bucket := model.DailyBucket{Date: key, Sum: decimal.Zero}
		if a, ok := byDate[key]; ok {
			bucket.Sum = a.sum
			bucket.Count = a.count
		}
		series = append(series, bucket)
	}
	return series
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *AnalyticsService) campaignPerformance(ctx context.Context, from, to time.Time) ([]model.CampaignPerformance, error) {
	rows, err := s.reader.CampaignPerformanceBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]model.CampaignPerformance, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}

func latencyStats(verified []*model.Donation) model.LatencyStats {
	var total float64
	var n int64
	for _, d := range verified {
		if d.VerifiedAt == nil {
			continue
		}
		total += d.VerifiedAt.Sub(d.CreatedAt).Seconds()
		n++
	}
	stats := model.LatencyStats{Samples: n}
	if n > 0 {
		stats.MeanSeconds = total / float64(n)
	}
	return stats
}

func adminPerformance(verified []*model.Donation) []model.AdminPerformance {
	type agg struct {
		count int64
		sum   decimal.Decimal
	}
	byAdmin := map[int64]*agg{}
	for _, d := range verified {
		if d.VerifiedBy == nil {
			continue
		}
		a, ok := byAdmin[*d.VerifiedBy]
		if !ok {
			a = &agg{sum: decimal.Zero}
			byAdmin[*d.VerifiedBy] = a
		}
		a.count++
		a.sum = a.sum.Add(d.Amount)
	}

	out := make([]model.AdminPerformance, 0, len(byAdmin))
	for id, a := range byAdmin {
		out = append(out, model.AdminPerformance{VerifierID: id, Count: a.count, Sum: a.sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
