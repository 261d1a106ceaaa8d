package services

import (
	"context"
	"testing"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAnalyticsReader struct {
	mock.Mock
}

func (m *MockAnalyticsReader) TotalsBetween(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(int64), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockAnalyticsReader) CompletedBetween(ctx context.Context, from, to time.Time) ([]*model.Donation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Donation), args.Error(1)
}

func (m *MockAnalyticsReader) CampaignPerformanceBetween(ctx context.Context, from, to time.Time) ([]*model.CampaignPerformance, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CampaignPerformance), args.Error(1)
}

func (m *MockAnalyticsReader) VerifiedBetween(ctx context.Context, from, to time.Time) ([]*model.Donation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Donation), args.Error(1)
}

func TestAnalyticsService_Report(t *testing.T) {
	ctx := context.Background()
	manila := time.FixedZone("Asia/Manila", 8*60*60)

	from := time.Date(2026, 2, 10, 0, 0, 0, 0, manila)
	to := time.Date(2026, 2, 12, 23, 59, 59, 0, manila)

	admin1 := int64(42)
	admin2 := int64(7)
	v1 := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	v2 := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)

	completed := []*model.Donation{
		// 18:00 UTC is 02:00 the next day in Manila
		{ID: 1, Amount: decimal.NewFromInt(100), CreatedAt: time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)},
		{ID: 2, Amount: decimal.NewFromInt(200), CreatedAt: time.Date(2026, 2, 11, 1, 0, 0, 0, time.UTC)},
		{ID: 3, Amount: decimal.NewFromInt(300), CreatedAt: time.Date(2026, 2, 11, 2, 0, 0, 0, time.UTC)},
	}
	verified := []*model.Donation{
		{ID: 1, Amount: decimal.NewFromInt(100), CreatedAt: v1.Add(-2 * time.Hour), VerifiedAt: &v1, VerifiedBy: &admin1},
		{ID: 2, Amount: decimal.NewFromInt(200), CreatedAt: v2.Add(-4 * time.Hour), VerifiedAt: &v2, VerifiedBy: &admin1},
		{ID: 3, Amount: decimal.NewFromInt(300), CreatedAt: v2.Add(-time.Hour), VerifiedAt: &v2, VerifiedBy: &admin2},
	}

	reader := new(MockAnalyticsReader)
	reader.On("TotalsBetween", ctx, from, to).Return(int64(3), decimal.NewFromInt(600), nil)
	reader.On("CompletedBetween", ctx, from, to).Return(completed, nil)
	reader.On("CampaignPerformanceBetween", ctx, from, to).Return([]*model.CampaignPerformance{
		{CampaignID: 1, Title: "Gym Fund", Sum: decimal.NewFromInt(600), Count: 3, Average: decimal.NewFromInt(200)},
	}, nil)
	reader.On("VerifiedBetween", ctx, from, to).Return(verified, nil)

	svc := NewAnalyticsService(reader, manila)
	report, err := svc.Report(ctx, from, to)
	require.NoError(t, err)

	t.Run("totals carry a rounded average", func(t *testing.T) {
		assert.Equal(t, int64(3), report.Totals.Count)
		assert.True(t, report.Totals.Sum.Equal(decimal.NewFromInt(600)))
		assert.True(t, report.Totals.Average.Equal(decimal.NewFromInt(200)))
	})

	t.Run("daily series buckets by local date and zero-fills", func(t *testing.T) {
		require.Len(t, report.DailySeries, 3)
		assert.Equal(t, "2026-02-10", report.DailySeries[0].Date)
		assert.Zero(t, report.DailySeries[0].Count) // the 18:00 UTC gift lands on the 11th locally

		assert.Equal(t, "2026-02-11", report.DailySeries[1].Date)
		assert.Equal(t, int64(3), report.DailySeries[1].Count)
		assert.True(t, report.DailySeries[1].Sum.Equal(decimal.NewFromInt(600)))

		assert.Equal(t, "2026-02-12", report.DailySeries[2].Date)
		assert.Zero(t, report.DailySeries[2].Count)
	})

	t.Run("verification latency over stamped rows", func(t *testing.T) {
		assert.Equal(t, int64(3), report.VerificationLatency.Samples)
		// (2h + 4h + 1h) / 3
		assert.InDelta(t, (7 * time.Hour / 3).Seconds(), report.VerificationLatency.MeanSeconds, 0.1)
	})

	t.Run("admin performance sorted by volume", func(t *testing.T) {
		require.Len(t, report.AdminPerformance, 2)
		assert.Equal(t, admin1, report.AdminPerformance[0].VerifierID)
		assert.Equal(t, int64(2), report.AdminPerformance[0].Count)
		assert.True(t, report.AdminPerformance[0].Sum.Equal(decimal.NewFromInt(300)))
		assert.Equal(t, admin2, report.AdminPerformance[1].VerifierID)
	})
}

func TestAnalyticsService_ReportLastDays(t *testing.T) {
	ctx := context.Background()
	reader := new(MockAnalyticsReader)
	svc := NewAnalyticsService(reader, time.UTC)

	var gotFrom, gotTo time.Time
	capture := func(args mock.Arguments) {
		gotFrom = args.Get(1).(time.Time)
		gotTo = args.Get(2).(time.Time)
	}
	reader.On("TotalsBetween", ctx, mock.Anything, mock.Anything).Run(capture).Return(int64(0), decimal.Zero, nil)
	reader.On("CompletedBetween", ctx, mock.Anything, mock.Anything).Return([]*model.Donation{}, nil)
	reader.On("CampaignPerformanceBetween", ctx, mock.Anything, mock.Anything).Return([]*model.CampaignPerformance{}, nil)
	reader.On("VerifiedBetween", ctx, mock.Anything, mock.Anything).Return([]*model.Donation{}, nil)

	report, err := svc.ReportLastDays(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 0, gotFrom.Hour())
	assert.Equal(t, 0, gotFrom.Minute())
	// seven calendar days inclusive of today
	assert.Equal(t, 6, int(gotTo.Sub(gotFrom).Hours()/24))
	require.Len(t, report.DailySeries, 7)
}
