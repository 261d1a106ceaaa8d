package fraud

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

// Thresholds is the injected rule configuration. Mutating it after engine
// construction has no effect; build a new engine instead.
type Thresholds struct {
	RapidWindow         time.Duration
	RapidCount          int
	SuspiciousAmountMin decimal.Decimal
	TestAmounts         []decimal.Decimal // flagged only when amount < TestAmountCeiling
	TestAmountCeiling   decimal.Decimal
	SameAmountWindow    time.Duration
	SameAmountCount     int
	PrivateIPPrefixes   []string
	DailyPerIPMax       int // reserved; evaluated only when a client IP was recorded
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		RapidWindow:         60 * time.Minute,
		RapidCount:          5,
		SuspiciousAmountMin: decimal.NewFromInt(50000),
		TestAmounts: []decimal.Decimal{
			decimal.NewFromInt(1),
			decimal.NewFromInt(10),
			decimal.NewFromInt(100),
			decimal.NewFromInt(1000),
			decimal.NewFromInt(10000),
		},
		TestAmountCeiling: decimal.NewFromInt(500),
		SameAmountWindow:  24 * time.Hour,
		SameAmountCount:   5,
		PrivateIPPrefixes: []string{"10.", "172.", "192.168."},
		DailyPerIPMax:     10,
	}
}

// DonationReader is the read surface the rules need.
type DonationReader interface {
	CountByEmailSince(ctx context.Context, email string, since time.Time, excludeID int64) (int64, error)
	CountCompletedSameAmountSince(ctx context.Context, amount decimal.Decimal, since time.Time, excludeID int64) (int64, error)
	FindEarlierByProofHash(ctx context.Context, hash string, excludeID int64) (*model.Donation, error)
}

type BlacklistReader interface {
	QueryExact(ctx context.Context, kind model.BlacklistKind, value string, now time.Time) ([]*model.BlacklistEntry, error)
	ActivePatterns(ctx context.Context, now time.Time) ([]*model.BlacklistEntry, error)
}

// Rule inspects one donation and returns an alert, or nil when it does not
// fire. Rules are small and independent; a failing rule is logged and skipped.
type Rule func(ctx context.Context, d *model.Donation, meta model.RequestMeta) (*model.FraudAlert, error)

type namedRule struct {
	name string
	rule Rule
}

// Engine applies the ordered rule set to a donation that just received its
// payment proof and assembles the resulting alerts.
type Engine struct {
	thresholds Thresholds
	donations  DonationReader
	blacklist  BlacklistReader
	now        func() time.Time
	rules      []namedRule
}

func NewEngine(thresholds Thresholds, donations DonationReader, blacklist BlacklistReader) *Engine {
	e := &Engine{
		thresholds: thresholds,
		donations:  donations,
		blacklist:  blacklist,
		now:        time.Now,
	}
	e.rules = []namedRule{
		{"blacklist_hit", e.blacklistRule},
		{"rapid_donations", e.rapidDonationsRule},
		{"suspicious_amount", e.suspiciousAmountRule},
		{"duplicate_image", e.duplicateImageRule},
		{"unusual_location", e.unusualLocationRule},
	}
	return e
}

// Register appends a custom rule after the built-in set.
func (e *Engine) Register(name string, rule Rule) {
	e.rules = append(e.rules, namedRule{name, rule})
}

// Evaluate runs every rule and returns the alerts that fired, status pending.
// The engine never fails as a whole: a rule error drops that rule only.
func (e *Engine) Evaluate(ctx context.Context, d *model.Donation, meta model.RequestMeta) []*model.FraudAlert {
	var alerts []*model.FraudAlert
	for _, nr := range e.rules {
		alert, err := nr.rule(ctx, d, meta)
		if err != nil {
			logger.Warn("fraud rule failed, skipping",
				"rule", nr.name, "donation_id", d.ID, "error", err)
			continue
		}
		if alert == nil {
			continue
		}
		alert.DonationID = d.ID
		alert.Status = model.FraudAlertStatusPending
		alerts = append(alerts, alert)
	}
	return alerts
}

// Blocking reports whether any alert forces the donation into disputed.
func Blocking(alerts []*model.FraudAlert) bool {
	for _, a := range alerts {
		if a.Severity.Blocking() {
			return true
		}
	}
	return false
}

/* ---------------------------------- rules --------------------------------- */

func (e *Engine) blacklistRule(ctx context.Context, d *model.Donation, meta model.RequestMeta) (*model.FraudAlert, error) {
	now := e.now()

	checks := []struct {
		kind  model.BlacklistKind
		value string
	}{
		{model.BlacklistKindEmail, strings.ToLower(strings.TrimSpace(d.DonorEmail))},
		{model.BlacklistKindIP, meta.ClientIP},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		entries, err := e.blacklist.QueryExact(ctx, c.kind, c.value, now)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return &model.FraudAlert{
				Kind:        model.FraudAlertBlacklistedEntity,
				Severity:    model.FraudSeverityHigh,
				Description: fmt.Sprintf("donation matches active blacklist entry (%s)", c.kind),
				Metadata:    map[string]string{"kind": string(c.kind), "value": c.value, "reason": entries[0].Reason},
			}, nil
		}
	}

	if d.DonorName != "" {
		patterns, err := e.blacklist.ActivePatterns(ctx, now)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p.Value)
			if err != nil {
				logger.Warn("unparseable blacklist name pattern", "entry_id", p.ID, "pattern", p.Value)
				continue
			}
			if re.MatchString(d.DonorName) {
				return &model.FraudAlert{
					Kind:        model.FraudAlertBlacklistedEntity,
					Severity:    model.FraudSeverityHigh,
					Description: "donor name matches active blacklist pattern",
					Metadata:    map[string]string{"kind": string(model.BlacklistKindNamePattern), "pattern": p.Value},
				}, nil
			}
		}
	}
	return nil, nil
}

func (e *Engine) rapidDonationsRule(ctx context.Context, d *model.Donation, _ model.RequestMeta) (*model.FraudAlert, error) {
	if d.DonorEmail == "" {
		return nil, nil
	}
	since := e.now().Add(-e.thresholds.RapidWindow)
	n, err := e.donations.CountByEmailSince(ctx, d.DonorEmail, since, d.ID)
	if err != nil {
		return nil, err
	}
	// the donation under evaluation counts toward the window
	if n+1 < int64(e.thresholds.RapidCount) {
		return nil, nil
	}
	return &model.FraudAlert{
		Kind:     model.FraudAlertRapidDonations,
		Severity: model.FraudSeverityMedium,
		Description: fmt.Sprintf("%d donations from %s within %s",
			n+1, d.DonorEmail, e.thresholds.RapidWindow),
		Metadata: map[string]string{"count": fmt.Sprintf("%d", n+1)},
	}, nil
}

func (e *Engine) suspiciousAmountRule(ctx context.Context, d *model.Donation, _ model.RequestMeta) (*model.FraudAlert, error) {
	if d.Amount.GreaterThanOrEqual(e.thresholds.SuspiciousAmountMin) {
		return &model.FraudAlert{
			Kind:        model.FraudAlertSuspiciousAmount,
			Severity:    model.FraudSeverityMedium,
			Description: fmt.Sprintf("amount %s at or above threshold %s", d.Amount, e.thresholds.SuspiciousAmountMin),
		}, nil
	}

	if d.Amount.LessThan(e.thresholds.TestAmountCeiling) {
		for _, t := range e.thresholds.TestAmounts {
			if d.Amount.Equal(t) {
				return &model.FraudAlert{
					Kind:        model.FraudAlertSuspiciousAmount,
					Severity:    model.FraudSeverityMedium,
					Description: fmt.Sprintf("amount %s looks like a card-testing probe", d.Amount),
				}, nil
			}
		}
	}

	since := e.now().Add(-e.thresholds.SameAmountWindow)
	n, err := e.donations.CountCompletedSameAmountSince(ctx, d.Amount, since, d.ID)
	if err != nil {
		return nil, err
	}
	if n >= int64(e.thresholds.SameAmountCount) {
		return &model.FraudAlert{
			Kind:     model.FraudAlertSuspiciousAmount,
			Severity: model.FraudSeverityMedium,
			Description: fmt.Sprintf("%d completed donations of %s within %s",
				n, d.Amount, e.thresholds.SameAmountWindow),
		}, nil
	}
	return nil, nil
}

func (e *Engine) duplicateImageRule(ctx context.Context, d *model.Donation, _ model.RequestMeta) (*model.FraudAlert, error) {
	if d.ProofHash == "" {
		return nil, nil
	}
	prev, err := e.donations.FindEarlierByProofHash(ctx, d.ProofHash, d.ID)
	if err != nil {
		if errors.Is(err, repository.ErrDonationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}
	return &model.FraudAlert{
		Kind:        model.FraudAlertDuplicateImage,
		Severity:    model.FraudSeverityHigh,
		Description: fmt.Sprintf("payment proof is bytewise identical to donation %s", prev.ReferenceNumber),
		Metadata:    map[string]string{"matched_reference": prev.ReferenceNumber, "md5": d.ProofHash},
	}, nil
}

func (e *Engine) unusualLocationRule(_ context.Context, _ *model.Donation, meta model.RequestMeta) (*model.FraudAlert, error) {
	if meta.ClientIP == "" {
		return nil, nil
	}
	for _, prefix := range e.thresholds.PrivateIPPrefixes {
		if strings.HasPrefix(meta.ClientIP, prefix) {
			// a frequent false positive behind NAT; kept advisory-only
			return &model.FraudAlert{
				Kind:        model.FraudAlertUnusualLocation,
				Severity:    model.FraudSeverityLow,
				Description: "client IP is in a private range",
				Metadata:    map[string]string{"client_ip": meta.ClientIP},
			}, nil
		}
	}
	return nil, nil
}
