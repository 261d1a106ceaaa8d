package repository

import (
	"context"
	"errors"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/pg"
)

var (
	// ErrNotificationDuplicate signals the dedup index rejected a repeat send.
	ErrNotificationDuplicate = errors.New("notification already recorded")
)

type NotificationRecordRepository struct {
	*pg.DB
}

func NewNotificationRecordRepository(db *pg.DB) *NotificationRecordRepository {
	return &NotificationRecordRepository{
		db,
	}
}

func (r *NotificationRecordRepository) Create(ctx context.Context, n *model.NotificationRecord) (*model.NotificationRecord, error) {
	entity := toNotificationRecordEntity(n)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNotificationDuplicate
		}
		return nil, err
	}

	return toNotificationRecordModel(entity), nil
}

// Exists reports whether a record for (donation, purpose, prior state) is
// already on the ledger.
func (r *NotificationRecordRepository) Exists(ctx context.Context, donationID int64, purpose model.NotificationPurpose, priorState model.DonationStatus) (bool, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&NotificationRecordEntity{}).
		Where("donation_id = ? AND purpose = ? AND prior_state = ?",
			donationID, string(purpose), string(priorState)).
		Count(&n).Error
	return n > 0, err
}

// ReceiptExists checks the one-receipt-per-donation invariant regardless of
// the prior state recorded on the row.
func (r *NotificationRecordRepository) ReceiptExists(ctx context.Context, donationID int64) (bool, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&NotificationRecordEntity{}).
		Where("donation_id = ? AND purpose = ? AND suppressed = ?",
			donationID, string(model.NotificationPurposeReceipt), false).
		Count(&n).Error
	return n > 0, err
}

// ReceiptRecorded reports whether any receipt row exists for the donation,
// suppressed or not. The reconcile sweep uses it so a donation whose receipt
// was suppressed is not republished on every pass.
func (r *NotificationRecordRepository) ReceiptRecorded(ctx context.Context, donationID int64) (bool, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&NotificationRecordEntity{}).
		Where("donation_id = ? AND purpose = ?",
			donationID, string(model.NotificationPurposeReceipt)).
		Count(&n).Error
	return n > 0, err
}

// CountByDonation is a test and reconcile helper.
func (r *NotificationRecordRepository) CountByDonation(ctx context.Context, donationID int64, purpose model.NotificationPurpose) (int64, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&NotificationRecordEntity{}).
		Where("donation_id = ? AND purpose = ?", donationID, string(purpose)).
		Count(&n).Error
	return n, err
}
