package model

import "time"

// PaymentConfig is the out-of-band payment destination shown to donors.
// At most one config is active at any time.
type PaymentConfig struct {
	ID             int64     `json:"id"`
	Label          string    `json:"label"`
	AccountNumber  string    `json:"account_number"`
	AccountName    string    `json:"account_name"`
	QRImagePath    string    `json:"qr_image_path"`
	Instructions   string    `json:"instructions"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Usable reports whether the config can back a live donate page. Activation
// requires a QR image, so a usable config is active and has one.
func (p *PaymentConfig) Usable() bool {
	return p != nil && p.IsActive && p.QRImagePath != ""
}
