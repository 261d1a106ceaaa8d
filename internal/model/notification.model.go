package model

import "time"

type NotificationPurpose string

const (
	NotificationPurposeConfirmation NotificationPurpose = "confirmation"
	NotificationPurposeStatusUpdate NotificationPurpose = "status_update"
	NotificationPurposeReceipt      NotificationPurpose = "receipt"
)

// NotificationRecord is the dedup ledger: one row per delivered (or
// suppressed) notification. At most one receipt row may exist per donation.
type NotificationRecord struct {
	ID         int64               `json:"id"`
	DonationID int64               `json:"donation_id"`
	Purpose    NotificationPurpose `json:"purpose"`
	PriorState DonationStatus      `json:"prior_state,omitempty"`
	Recipient  string              `json:"recipient"`
	Suppressed bool                `json:"suppressed"`
	SentAt     time.Time           `json:"sent_at"`
}

// NotificationIntent is the unit of work the state machine hands to the
// dispatcher. It is published on the stream after the transition commits.
type NotificationIntent struct {
	DonationID int64               `json:"donation_id"`
	Purpose    NotificationPurpose `json:"purpose"`
	PriorState DonationStatus      `json:"prior_state,omitempty"`
	NewState   DonationStatus      `json:"new_state,omitempty"`
	EmittedAt  time.Time           `json:"emitted_at"`
}
