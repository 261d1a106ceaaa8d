package repository

import (
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type DonationEntity struct {
	ID                int64           `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	ReferenceNumber   string          `db:"reference_number"   gorm:"column:reference_number;not null;uniqueIndex"`
	CampaignID        int64           `db:"campaign_id"        gorm:"column:campaign_id;not null;index"`
	Campaign          *CampaignEntity `gorm:"foreignKey:CampaignID;references:ID"`
	DonorUserID       *int64          `db:"donor_user_id"      gorm:"column:donor_user_id;index"`
	DonorName         string          `db:"donor_name"         gorm:"column:donor_name"`
	DonorEmail        string          `db:"donor_email"        gorm:"column:donor_email;index"`
	Amount            decimal.Decimal `db:"amount"             gorm:"column:amount;type:decimal(14,2);not null"`
	DonatedAt         time.Time       `db:"donated_at"         gorm:"column:donated_at"`
	Status            string          `db:"status"             gorm:"column:status;not null;index"`
	IsAnonymous       bool            `db:"is_anonymous"       gorm:"column:is_anonymous;not null"`
	Message           string          `db:"message"            gorm:"column:message"`
	PaymentMethod     string          `db:"payment_method"     gorm:"column:payment_method;not null"`
	ProofPath         string          `db:"proof_path"         gorm:"column:proof_path"`
	ProofHash         string          `db:"proof_hash"         gorm:"column:proof_hash;index"`
	ClientIP          string          `db:"client_ip"          gorm:"column:client_ip"`
	ExternalTxnID     string          `db:"external_txn_id"    gorm:"column:external_txn_id"`
	VerificationNotes string          `db:"verification_notes" gorm:"column:verification_notes"`
	VerifiedBy        *int64          `db:"verified_by"        gorm:"column:verified_by;index"`
	VerifiedAt        *time.Time      `db:"verified_at"        gorm:"column:verified_at;index"`
	ReceiptSent       bool            `db:"receipt_sent"       gorm:"column:receipt_sent;not null"`
	CreatedAt         time.Time       `db:"created_at"         gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time       `db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (DonationEntity) TableName() string {
	return "donations"
}

func toDonationEntity(d *model.Donation) *DonationEntity {
	if d == nil {
		return nil
	}
	return &DonationEntity{
		ID:                d.ID,
		ReferenceNumber:   d.ReferenceNumber,
		CampaignID:        d.CampaignID,
		DonorUserID:       d.DonorUserID,
		DonorName:         d.DonorName,
		DonorEmail:        d.DonorEmail,
		Amount:            d.Amount,
		DonatedAt:         d.DonatedAt,
		Status:            string(d.Status),
		IsAnonymous:       d.IsAnonymous,
		Message:           d.Message,
		PaymentMethod:     d.PaymentMethod,
		ProofPath:         d.ProofPath,
		ProofHash:         d.ProofHash,
		ClientIP:          d.ClientIP,
		ExternalTxnID:     d.ExternalTxnID,
		VerificationNotes: d.VerificationNotes,
		VerifiedBy:        d.VerifiedBy,
		VerifiedAt:        d.VerifiedAt,
		ReceiptSent:       d.ReceiptSent,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toDonationModel(e *DonationEntity) *model.Donation {
	if e == nil {
		return nil
	}
	return &model.Donation{
		ID:                e.ID,
		ReferenceNumber:   e.ReferenceNumber,
		CampaignID:        e.CampaignID,
		DonorUserID:       e.DonorUserID,
		DonorName:         e.DonorName,
		DonorEmail:        e.DonorEmail,
		Amount:            e.Amount,
		DonatedAt:         e.DonatedAt,
		Status:            model.DonationStatus(e.Status),
		IsAnonymous:       e.IsAnonymous,
		Message:           e.Message,
		PaymentMethod:     e.PaymentMethod,
		ProofPath:         e.ProofPath,
		ProofHash:         e.ProofHash,
		ClientIP:          e.ClientIP,
		ExternalTxnID:     e.ExternalTxnID,
		VerificationNotes: e.VerificationNotes,
		VerifiedBy:        e.VerifiedBy,
		VerifiedAt:        e.VerifiedAt,
		ReceiptSent:       e.ReceiptSent,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toDonationModels(entities []*DonationEntity) []*model.Donation {
	if entities == nil {
		return nil
	}
	models := make([]*model.Donation, len(entities))
	for i, e := range entities {
		models[i] = toDonationModel(e)
	}
	return models
}
