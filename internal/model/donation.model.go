package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	DonationStatusPendingPayment      DonationStatus = "pending_payment"
	DonationStatusPendingVerification DonationStatus = "pending_verification"
	DonationStatusCompleted           DonationStatus = "completed"
	DonationStatusFailed              DonationStatus = "failed"
	DonationStatusRefunded            DonationStatus = "refunded"
	DonationStatusDisputed            DonationStatus = "disputed"
)

const PaymentMethodGcash = "gcash"

// allowedTransitions is the authoritative transition table. Proof attachment
// moves pending_payment forward; every other edge is a staff action.
var allowedTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPendingPayment:      {DonationStatusPendingVerification, DonationStatusDisputed},
	DonationStatusPendingVerification: {DonationStatusCompleted, DonationStatusFailed, DonationStatusDisputed},
	DonationStatusDisputed:            {DonationStatusCompleted, DonationStatusFailed},
	DonationStatusCompleted:           {DonationStatusRefunded},
}

func (s DonationStatus) CanTransitionTo(to DonationStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the verification flow.
// completed is exitable only to refunded and still stamps verification.
func (s DonationStatus) IsTerminal() bool {
	switch s {
	case DonationStatusCompleted, DonationStatusFailed, DonationStatusRefunded:
		return true
	}
	return false
}

func (s DonationStatus) Valid() bool {
	switch s {
	case DonationStatusPendingPayment, DonationStatusPendingVerification,
		DonationStatusCompleted, DonationStatusFailed,
		DonationStatusRefunded, DonationStatusDisputed:
		return true
	}
	return false
}

type Donation struct {
	ID                int64           `json:"id"`
	ReferenceNumber   string          `json:"reference_number"`
	CampaignID        int64           `json:"campaign_id"`
	DonorUserID       *int64          `json:"donor_user_id"`
	DonorName         string          `json:"donor_name"`
	DonorEmail        string          `json:"donor_email"`
	Amount            decimal.Decimal `json:"amount"`
	DonatedAt         time.Time       `json:"donated_at"`
	Status            DonationStatus  `json:"status"`
	IsAnonymous       bool            `json:"is_anonymous"`
	Message           string          `json:"message"`
	PaymentMethod     string          `json:"payment_method"`
	ProofPath         string          `json:"proof_path,omitempty"`
	ProofHash         string          `json:"-"`
	ClientIP          string          `json:"-"`
	ExternalTxnID     string          `json:"external_txn_id,omitempty"`
	VerificationNotes string          `json:"verification_notes,omitempty"`
	VerifiedBy        *int64          `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
	ReceiptSent       bool            `json:"receipt_sent"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DisplayName masks the donor for anonymous gifts.
func (d *Donation) DisplayName() string {
	if d.IsAnonymous {
		return "Anonymous"
	}
	return d.DonorName
}

// RecipientEmail is the address notifications go to.
func (d *Donation) RecipientEmail() string {
	return strings.TrimSpace(d.DonorEmail)
}

func (d *Donation) HasProof() bool {
	return d.ProofPath != ""
}

// DonationCreateRequest is the input for creating a donation.
type DonationCreateRequest struct {
	CampaignSlug string
	DonorUserID  *int64
	DonorName    string
	DonorEmail   string
	Amount       decimal.Decimal
	IsAnonymous  bool
	Message      string
	ClientIP     string
}

func (p DonationCreateRequest) Validate() error {
	if p.CampaignSlug == "" {
		return errors.New("campaign is required")
	}
	if !p.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if p.Amount.Exponent() < -2 {
		return errors.New("amount must have at most two decimal places")
	}
	if p.DonorUserID == nil && !p.IsAnonymous {
		if p.DonorEmail == "" {
			return errors.New("donor_email is required")
		}
		if strings.TrimSpace(p.DonorName) == "" {
			return errors.New("donor_name is required")
		}
	}
	if p.DonorEmail != "" {
		if _, err := mail.ParseAddress(p.DonorEmail); err != nil {
			return errors.New("donor_email is invalid")
		}
	}
	return nil
}

// DonationFilter controls workbench list queries.
type DonationFilter struct {
	Statuses   []DonationStatus // IN (...)
	CampaignID *int64
	Search     *string // matches reference_number, donor_name, donor_email
	From       *time.Time
	To         *time.Time
	Limit      int // default 50
	Offset     int
	Desc       bool // order by created_at
}
