package notifier

import (
	"context"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/logger"
)

const reconcileBatch = 200

type DonationLister interface {
	List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error)
}

type IntentPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Reconciler re-derives intents that never made it onto the stream. A
// transition commits before its intent is published, so a crash between the
// two loses the intent; the sweep finds donations whose ledger is missing
// the expected row and republishes. The ledger keeps the republish from
// double-sending.
type Reconciler struct {
	donations DonationLister
	records   RecordLedger
	publisher IntentPublisher
	interval  time.Duration

	// only donations older than this are swept, so the dispatcher gets a
	// chance to deliver the original intent first
	minAge time.Duration
}

func NewReconciler(donations DonationLister, records RecordLedger, publisher IntentPublisher, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{
		donations: donations,
		records:   records,
		publisher: publisher,
		interval:  interval,
		minAge:    2 * time.Minute,
	}
}

func (r *Reconciler) Interval() time.Duration {
	return r.interval
}

// Sweep republishes missing confirmation and receipt intents. Obsolete
// status updates are deliberately not re-derived; they are droppable by
// contract.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.minAge)

	republished := 0

	n, err := r.sweepConfirmations(ctx, cutoff)
	if err != nil {
		return err
	}
	republished += n

	n, err = r.sweepReceipts(ctx, cutoff)
	if err != nil {
		return err
	}
	republished += n

	if republished > 0 {
		logger.Info("reconcile sweep republished intents", "count", republished)
	}
	return nil
}

func (r *Reconciler) sweepConfirmations(ctx context.Context, cutoff time.Time) (int, error) {
	donations, _, err := r.donations.List(ctx, model.DonationFilter{
		Statuses: []model.DonationStatus{model.DonationStatusPendingVerification},
		To:       &cutoff,
		Limit:    reconcileBatch,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range donations {
		exists, err := r.records.Exists(ctx, d.ID,
			model.NotificationPurposeConfirmation, model.DonationStatusPendingPayment)
		if err != nil || exists {
			continue
		}
		if r.publish(ctx, d.ID, model.NotificationPurposeConfirmation,
			model.DonationStatusPendingPayment, d.Status) {
			count++
		}
	}
	return count, nil
}

func (r *Reconciler) sweepReceipts(ctx context.Context, cutoff time.Time) (int, error) {
	donations, _, err := r.donations.List(ctx, model.DonationFilter{
		Statuses: []model.DonationStatus{model.DonationStatusCompleted},
		To:       &cutoff,
		Limit:    reconcileBatch,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range donations {
		if d.ReceiptSent {
			continue
		}
		// a suppressed receipt row counts too; recipient_missing is final
		recorded, err := r.records.ReceiptRecorded(ctx, d.ID)
		if err != nil || recorded {
			continue
		}
		if r.publish(ctx, d.ID, model.NotificationPurposeReceipt,
			model.DonationStatusPendingVerification, d.Status) {
			count++
		}
	}
	return count, nil
}

func (r *Reconciler) publish(ctx context.Context, donationID int64, purpose model.NotificationPurpose, prior, current model.DonationStatus) bool {
	intent := model.NotificationIntent{
		DonationID: donationID,
		Purpose:    purpose,
		PriorState: prior,
		NewState:   current,
		EmittedAt:  time.Now().UTC(),
	}
	if _, err := r.publisher.PublishJSON(ctx, intent, map[string]string{
		"purpose": string(purpose),
		"origin":  "reconcile",
	}); err != nil {
		logger.Error("reconcile republish failed",
			"donation_id", donationID, "purpose", purpose, "error", err)
		return false
	}
	return true
}
