package repository

import (
	"encoding/json"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
)

type FraudAlertEntity struct {
	ID              int64           `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	DonationID      int64           `db:"donation_id"      gorm:"column:donation_id;not null;index"`
	Donation        *DonationEntity `gorm:"foreignKey:DonationID;references:ID"`
	Kind            string          `db:"kind"             gorm:"column:kind;not null;index"`
	Severity        string          `db:"severity"         gorm:"column:severity;not null;index"`
	Description     string          `db:"description"      gorm:"column:description"`
	Metadata        string          `db:"metadata"         gorm:"column:metadata"` // JSON object
	Status          string          `db:"status"           gorm:"column:status;not null;index"`
	ReviewedBy      *int64          `db:"reviewed_by"      gorm:"column:reviewed_by"`
	ReviewedAt      *time.Time      `db:"reviewed_at"      gorm:"column:reviewed_at"`
	ResolutionNotes string          `db:"resolution_notes" gorm:"column:resolution_notes"`
	CreatedAt       time.Time       `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (FraudAlertEntity) TableName() string {
	return "fraud_alerts"
}

func toFraudAlertEntity(a *model.FraudAlert) *FraudAlertEntity {
	if a == nil {
		return nil
	}
	meta := ""
	if len(a.Metadata) > 0 {
		if b, err := json.Marshal(a.Metadata); err == nil {
			meta = string(b)
		}
	}
	return &FraudAlertEntity{
		ID:              a.ID,
		DonationID:      a.DonationID,
		Kind:            string(a.Kind),
		Severity:        string(a.Severity),
		Description:     a.Description,
		Metadata:        meta,
		Status:          string(a.Status),
		ReviewedBy:      a.ReviewedBy,
		ReviewedAt:      a.ReviewedAt,
		ResolutionNotes: a.ResolutionNotes,
		CreatedAt:       a.CreatedAt,
	}
}

func toFraudAlertModel(e *FraudAlertEntity) *model.FraudAlert {
	if e == nil {
		return nil
	}
	var meta map[string]string
	if e.Metadata != "" {
		_ = json.Unmarshal([]byte(e.Metadata), &meta)
	}
	return &model.FraudAlert{
		ID:              e.ID,
		DonationID:      e.DonationID,
		Kind:            model.FraudAlertKind(e.Kind),
		Severity:        model.FraudSeverity(e.Severity),
		Description:     e.Description,
		Metadata:        meta,
		Status:          model.FraudAlertStatus(e.Status),
		ReviewedBy:      e.ReviewedBy,
		ReviewedAt:      e.ReviewedAt,
		ResolutionNotes: e.ResolutionNotes,
		CreatedAt:       e.CreatedAt,
	}
}

func toFraudAlertModels(entities []*FraudAlertEntity) []*model.FraudAlert {
	if entities == nil {
		return nil
	}
	models := make([]*model.FraudAlert, len(entities))
	for i, e := range entities {
		models[i] = toFraudAlertModel(e)
	}
	return models
}
