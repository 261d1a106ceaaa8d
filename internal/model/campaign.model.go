package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CampaignStatus is the lifecycle state of a fundraising campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type CampaignVisibility string

const (
	CampaignVisibilityPublic     CampaignVisibility = "public"
	CampaignVisibilityRegistered CampaignVisibility = "registered_only"
)

type Campaign struct {
	ID              int64              `json:"id"`
	Slug            string             `json:"slug"`
	Title           string             `json:"title"`
	ShortDesc       string             `json:"short_description"`
	Description     string             `json:"description"`
	GoalAmount      decimal.Decimal    `json:"goal_amount"`
	CurrentAmount   decimal.Decimal    `json:"current_amount"` // derived, written only by the recomputer
	StartAt         *time.Time         `json:"start_at"`
	EndAt           *time.Time         `json:"end_at"`
	Status          CampaignStatus     `json:"status"`
	Visibility      CampaignVisibility `json:"visibility"`
	AllowDonations  bool               `json:"allow_donations"`
	PaymentConfigID *int64             `json:"payment_config_id"`
	CreatedBy       int64              `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// AcceptsDonations reports whether the campaign itself is in a state that
// admits new donations. Payment availability is checked separately against
// the referenced payment config.
func (c *Campaign) AcceptsDonations() bool {
	return c.Status == CampaignStatusActive && c.AllowDonations
}
