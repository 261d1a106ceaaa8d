package repository

import (
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
)

type PaymentConfigEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Label         string    `db:"label"          gorm:"column:label;not null"`
	AccountNumber string    `db:"account_number" gorm:"column:account_number;not null"`
	AccountName   string    `db:"account_name"   gorm:"column:account_name;not null"`
	QRImagePath   string    `db:"qr_image_path"  gorm:"column:qr_image_path"`
	Instructions  string    `db:"instructions"   gorm:"column:instructions"`
	IsActive      bool      `db:"is_active"      gorm:"column:is_active;not null;index"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentConfigEntity) TableName() string {
	return "payment_configs"
}

func toPaymentConfigEntity(p *model.PaymentConfig) *PaymentConfigEntity {
	if p == nil {
		return nil
	}
	return &PaymentConfigEntity{
		ID:            p.ID,
		Label:         p.Label,
		AccountNumber: p.AccountNumber,
		AccountName:   p.AccountName,
		QRImagePath:   p.QRImagePath,
		Instructions:  p.Instructions,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toPaymentConfigModel(e *PaymentConfigEntity) *model.PaymentConfig {
	if e == nil {
		return nil
	}
	return &model.PaymentConfig{
		ID:            e.ID,
		Label:         e.Label,
		AccountNumber: e.AccountNumber,
		AccountName:   e.AccountName,
		QRImagePath:   e.QRImagePath,
		Instructions:  e.Instructions,
		IsActive:      e.IsActive,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
