package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDonationReader answers the rule lookups from canned values.
type fakeDonationReader struct {
	emailCount      int64
	emailErr        error
	sameAmountCount int64
	sameAmountErr   error
	earlierByHash   *model.Donation
	earlierErr      error
}

func (f *fakeDonationReader) CountByEmailSince(context.Context, string, time.Time, int64) (int64, error) {
	return f.emailCount, f.emailErr
}

func (f *fakeDonationReader) CountCompletedSameAmountSince(context.Context, decimal.Decimal, time.Time, int64) (int64, error) {
	return f.sameAmountCount, f.sameAmountErr
}

func (f *fakeDonationReader) FindEarlierByProofHash(context.Context, string, int64) (*model.Donation, error) {
	if f.earlierErr != nil {
		return nil, f.earlierErr
	}
	if f.earlierByHash == nil {
		return nil, repository.ErrDonationNotFound
	}
	return f.earlierByHash, nil
}

type fakeBlacklistReader struct {
	exact    map[string][]*model.BlacklistEntry // keyed kind + "|" + value
	patterns []*model.BlacklistEntry
	err      error
}

func (f *fakeBlacklistReader) QueryExact(_ context.Context, kind model.BlacklistKind, value string, _ time.Time) ([]*model.BlacklistEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.exact[string(kind)+"|"+value], nil
}

func (f *fakeBlacklistReader) ActivePatterns(context.Context, time.Time) ([]*model.BlacklistEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.patterns, nil
}

func cleanDonation() *model.Donation {
	return &model.Donation{
		ID:         5,
		DonorName:  "Maria Santos",
		DonorEmail: "maria@example.com",
		Amount:     decimal.NewFromInt(750),
		ProofHash:  "abc123",
	}
}

func newTestEngine(donations *fakeDonationReader, blacklist *fakeBlacklistReader) *Engine {
	if donations == nil {
		donations = &fakeDonationReader{}
	}
	if blacklist == nil {
		blacklist = &fakeBlacklistReader{}
	}
	return NewEngine(DefaultThresholds(), donations, blacklist)
}

func TestEngine_CleanDonation(t *testing.T) {
	e := newTestEngine(nil, nil)
	alerts := e.Evaluate(context.Background(), cleanDonation(), model.RequestMeta{ClientIP: "203.0.113.7"})
	assert.Empty(t, alerts)
}

func TestEngine_BlacklistRule(t *testing.T) {
	ctx := context.Background()

	t.Run("blacklisted email blocks", func(t *testing.T) {
		e := newTestEngine(nil, &fakeBlacklistReader{
			exact: map[string][]*model.BlacklistEntry{
				"email|maria@example.com": {{Kind: model.BlacklistKindEmail, Value: "maria@example.com", Reason: "chargeback"}},
			},
		})

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertBlacklistedEntity, alerts[0].Kind)
		assert.Equal(t, model.FraudSeverityHigh, alerts[0].Severity)
		assert.Equal(t, int64(5), alerts[0].DonationID)
		assert.Equal(t, model.FraudAlertStatusPending, alerts[0].Status)
		assert.Equal(t, "chargeback", alerts[0].Metadata["reason"])
		assert.True(t, Blocking(alerts))
	})

	t.Run("blacklisted IP blocks", func(t *testing.T) {
		e := newTestEngine(nil, &fakeBlacklistReader{
			exact: map[string][]*model.BlacklistEntry{
				"ip|203.0.113.9": {{Kind: model.BlacklistKindIP, Value: "203.0.113.9"}},
			},
		})

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{ClientIP: "203.0.113.9"})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertBlacklistedEntity, alerts[0].Kind)
	})

	t.Run("name pattern matches case-insensitively", func(t *testing.T) {
		e := newTestEngine(nil, &fakeBlacklistReader{
			patterns: []*model.BlacklistEntry{{Kind: model.BlacklistKindNamePattern, Value: "^maria\\s"}},
		})

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Equal(t, "donor name matches active blacklist pattern", alerts[0].Description)
	})

	t.Run("reader failure drops the rule, not the evaluation", func(t *testing.T) {
		e := newTestEngine(&fakeDonationReader{emailCount: 10}, &fakeBlacklistReader{err: errors.New("db down")})

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		// blacklist rule was skipped; rapid rule still fired
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertRapidDonations, alerts[0].Kind)
	})
}

func TestEngine_RapidDonationsRule(t *testing.T) {
	ctx := context.Background()

	t.Run("at the threshold counting itself", func(t *testing.T) {
		// 4 prior + this one = 5 = RapidCount
		e := newTestEngine(&fakeDonationReader{emailCount: 4}, nil)

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertRapidDonations, alerts[0].Kind)
		assert.Equal(t, model.FraudSeverityMedium, alerts[0].Severity)
		assert.Equal(t, "5", alerts[0].Metadata["count"])
		assert.False(t, Blocking(alerts))
	})

	t.Run("below the threshold", func(t *testing.T) {
		e := newTestEngine(&fakeDonationReader{emailCount: 3}, nil)
		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		assert.Empty(t, alerts)
	})

	t.Run("no email, no rule", func(t *testing.T) {
		e := newTestEngine(&fakeDonationReader{emailCount: 100}, nil)
		d := cleanDonation()
		d.DonorEmail = ""
		alerts := e.Evaluate(ctx, d, model.RequestMeta{})
		assert.Empty(t, alerts)
	})
}

func TestEngine_SuspiciousAmountRule(t *testing.T) {
	ctx := context.Background()

	t.Run("large amount", func(t *testing.T) {
		e := newTestEngine(nil, nil)
		d := cleanDonation()
		d.Amount = decimal.NewFromInt(50000)

		alerts := e.Evaluate(ctx, d, model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertSuspiciousAmount, alerts[0].Kind)
	})

	t.Run("card-testing probe amount", func(t *testing.T) {
		e := newTestEngine(nil, nil)
		d := cleanDonation()
		d.Amount = decimal.NewFromInt(100)

		alerts := e.Evaluate(ctx, d, model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Contains(t, alerts[0].Description, "card-testing")
	})

	t.Run("probe amount above the ceiling is ignored", func(t *testing.T) {
		e := newTestEngine(nil, nil)
		d := cleanDonation()
		d.Amount = decimal.NewFromInt(1000) // in TestAmounts but >= ceiling

		alerts := e.Evaluate(ctx, d, model.RequestMeta{})
		assert.Empty(t, alerts)
	})

	t.Run("repeated identical completed amounts", func(t *testing.T) {
		e := newTestEngine(&fakeDonationReader{sameAmountCount: 5}, nil)

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertSuspiciousAmount, alerts[0].Kind)
	})
}

func TestEngine_DuplicateImageRule(t *testing.T) {
	ctx := context.Background()

	t.Run("reused proof image blocks", func(t *testing.T) {
		e := newTestEngine(&fakeDonationReader{
			earlierByHash: &model.Donation{ID: 2, ReferenceNumber: "DON-EARLIER"},
		}, nil)

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertDuplicateImage, alerts[0].Kind)
		assert.Equal(t, model.FraudSeverityHigh, alerts[0].Severity)
		assert.Equal(t, "DON-EARLIER", alerts[0].Metadata["matched_reference"])
		assert.True(t, Blocking(alerts))
	})

	t.Run("no proof hash, no rule", func(t *testing.T) {
		e := newTestEngine(&fakeDonationReader{
			earlierByHash: &model.Donation{ID: 2, ReferenceNumber: "DON-EARLIER"},
		}, nil)
		d := cleanDonation()
		d.ProofHash = ""

		alerts := e.Evaluate(ctx, d, model.RequestMeta{})
		assert.Empty(t, alerts)
	})
}

func TestEngine_UnusualLocationRule(t *testing.T) {
	ctx := context.Background()

	t.Run("private range is advisory only", func(t *testing.T) {
		e := newTestEngine(nil, nil)

		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{ClientIP: "192.168.1.20"})
		require.Len(t, alerts, 1)
		assert.Equal(t, model.FraudAlertUnusualLocation, alerts[0].Kind)
		assert.Equal(t, model.FraudSeverityLow, alerts[0].Severity)
		assert.False(t, Blocking(alerts))
	})

	t.Run("public address passes", func(t *testing.T) {
		e := newTestEngine(nil, nil)
		alerts := e.Evaluate(ctx, cleanDonation(), model.RequestMeta{ClientIP: "203.0.113.7"})
		assert.Empty(t, alerts)
	})
}

func TestEngine_Register(t *testing.T) {
	e := newTestEngine(nil, nil)
	e.Register("always_fires", func(context.Context, *model.Donation, model.RequestMeta) (*model.FraudAlert, error) {
		return &model.FraudAlert{Kind: model.FraudAlertManualReview, Severity: model.FraudSeverityLow}, nil
	})

	alerts := e.Evaluate(context.Background(), cleanDonation(), model.RequestMeta{})
	require.Len(t, alerts, 1)
	assert.Equal(t, model.FraudAlertManualReview, alerts[0].Kind)
	assert.Equal(t, int64(5), alerts[0].DonationID)
}
