package repository

import (
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type CampaignEntity struct {
	ID              int64           `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	Slug            string          `db:"slug"              gorm:"column:slug;not null;uniqueIndex"`
	Title           string          `db:"title"             gorm:"column:title;not null"`
	ShortDesc       string          `db:"short_description" gorm:"column:short_description"`
	Description     string          `db:"description"       gorm:"column:description"`
	GoalAmount      decimal.Decimal `db:"goal_amount"       gorm:"column:goal_amount;type:decimal(14,2);not null"`
	CurrentAmount   decimal.Decimal `db:"current_amount"    gorm:"column:current_amount;type:decimal(14,2);not null"`
	StartAt         *time.Time      `db:"start_at"          gorm:"column:start_at"`
	EndAt           *time.Time      `db:"end_at"            gorm:"column:end_at"`
	Status          string          `db:"status"            gorm:"column:status;not null;index"`
	Visibility      string          `db:"visibility"        gorm:"column:visibility;not null"`
	AllowDonations  bool            `db:"allow_donations"   gorm:"column:allow_donations;not null"`
	PaymentConfigID *int64          `db:"payment_config_id" gorm:"column:payment_config_id;index"`
	CreatedBy       int64           `db:"created_by"        gorm:"column:created_by"`
	CreatedAt       time.Time       `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(c *model.Campaign) *CampaignEntity {
	if c == nil {
		return nil
	}
	return &CampaignEntity{
		ID:              c.ID,
		Slug:            c.Slug,
		Title:           c.Title,
		ShortDesc:       c.ShortDesc,
		Description:     c.Description,
		GoalAmount:      c.GoalAmount,
		CurrentAmount:   c.CurrentAmount,
		StartAt:         c.StartAt,
		EndAt:           c.EndAt,
		Status:          string(c.Status),
		Visibility:      string(c.Visibility),
		AllowDonations:  c.AllowDonations,
		PaymentConfigID: c.PaymentConfigID,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:              e.ID,
		Slug:            e.Slug,
		Title:           e.Title,
		ShortDesc:       e.ShortDesc,
		Description:     e.Description,
		GoalAmount:      e.GoalAmount,
		CurrentAmount:   e.CurrentAmount,
		StartAt:         e.StartAt,
		EndAt:           e.EndAt,
		Status:          model.CampaignStatus(e.Status),
		Visibility:      model.CampaignVisibility(e.Visibility),
		AllowDonations:  e.AllowDonations,
		PaymentConfigID: e.PaymentConfigID,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
