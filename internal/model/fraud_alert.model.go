package model

import "time"

type FraudAlertKind string

const (
	FraudAlertDuplicateImage    FraudAlertKind = "duplicate_image"
	FraudAlertSuspiciousAmount  FraudAlertKind = "suspicious_amount"
	FraudAlertRapidDonations    FraudAlertKind = "rapid_donations"
	FraudAlertUnusualLocation   FraudAlertKind = "unusual_location"
	FraudAlertBlacklistedEntity FraudAlertKind = "blacklisted_entity"
	FraudAlertManualReview      FraudAlertKind = "manual_review"
)

type FraudSeverity string

const (
	FraudSeverityLow      FraudSeverity = "low"
	FraudSeverityMedium   FraudSeverity = "medium"
	FraudSeverityHigh     FraudSeverity = "high"
	FraudSeverityCritical FraudSeverity = "critical"
)

// Weight is the contribution of one alert to a donation's risk score.
func (s FraudSeverity) Weight() int {
	switch s {
	case FraudSeverityLow:
		return 1
	case FraudSeverityMedium:
		return 3
	case FraudSeverityHigh:
		return 5
	case FraudSeverityCritical:
		return 10
	}
	return 0
}

// Blocking reports whether the severity forces the donation into disputed.
func (s FraudSeverity) Blocking() bool {
	return s == FraudSeverityHigh || s == FraudSeverityCritical
}

type FraudAlertStatus string

const (
	FraudAlertStatusPending       FraudAlertStatus = "pending"
	FraudAlertStatusInvestigating FraudAlertStatus = "investigating"
	FraudAlertStatusResolved      FraudAlertStatus = "resolved"
	FraudAlertStatusFalsePositive FraudAlertStatus = "false_positive"
)

func (s FraudAlertStatus) Valid() bool {
	switch s {
	case FraudAlertStatusPending, FraudAlertStatusInvestigating,
		FraudAlertStatusResolved, FraudAlertStatusFalsePositive:
		return true
	}
	return false
}

type FraudAlert struct {
	ID              int64             `json:"id"`
	DonationID      int64             `json:"donation_id"`
	Kind            FraudAlertKind    `json:"kind"`
	Severity        FraudSeverity     `json:"severity"`
	Description     string            `json:"description"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Status          FraudAlertStatus  `json:"status"`
	ReviewedBy      *int64            `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	ResolutionNotes string            `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// RiskScore aggregates severity weights over a set of alerts, capped at 100.
func RiskScore(alerts []*FraudAlert) int {
	score := 0
	for _, a := range alerts {
		score += a.Severity.Weight()
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RequestMeta carries the request-scoped context fraud rules inspect.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}
