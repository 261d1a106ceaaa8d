package repository

import (
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
)

// The partial unique index guarding one receipt per donation lives in the
// goose migration; the tag below covers the sqlite test double.
type NotificationRecordEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	DonationID int64     `db:"donation_id" gorm:"column:donation_id;not null;index;uniqueIndex:idx_notification_dedup"`
	Purpose    string    `db:"purpose"     gorm:"column:purpose;not null;uniqueIndex:idx_notification_dedup"`
	PriorState string    `db:"prior_state" gorm:"column:prior_state;uniqueIndex:idx_notification_dedup"`
	Recipient  string    `db:"recipient"   gorm:"column:recipient"`
	Suppressed bool      `db:"suppressed"  gorm:"column:suppressed;not null"`
	SentAt     time.Time `db:"sent_at"     gorm:"column:sent_at;autoCreateTime"`
}

func (NotificationRecordEntity) TableName() string {
	return "notification_records"
}

func toNotificationRecordEntity(n *model.NotificationRecord) *NotificationRecordEntity {
	if n == nil {
		return nil
	}
	return &NotificationRecordEntity{
		ID:         n.ID,
		DonationID: n.DonationID,
		Purpose:    string(n.Purpose),
		PriorState: string(n.PriorState),
		Recipient:  n.Recipient,
		Suppressed: n.Suppressed,
		SentAt:     n.SentAt,
	}
}

func toNotificationRecordModel(e *NotificationRecordEntity) *model.NotificationRecord {
	if e == nil {
		return nil
	}
	return &model.NotificationRecord{
		ID:         e.ID,
		DonationID: e.DonationID,
		Purpose:    model.NotificationPurpose(e.Purpose),
		PriorState: model.DonationStatus(e.PriorState),
		Recipient:  e.Recipient,
		Suppressed: e.Suppressed,
		SentAt:     e.SentAt,
	}
}
