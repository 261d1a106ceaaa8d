package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	byStatus map[model.DonationStatus][]*model.Donation
}

func (f *fakeLister) List(_ context.Context, filter model.DonationFilter) ([]*model.Donation, int64, error) {
	var out []*model.Donation
	for _, s := range filter.Statuses {
		out = append(out, f.byStatus[s]...)
	}
	return out, int64(len(out)), nil
}

type fakePublisher struct {
	intents []model.NotificationIntent
}

func (f *fakePublisher) PublishJSON(_ context.Context, data interface{}, _ map[string]string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	var intent model.NotificationIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return "", err
	}
	f.intents = append(f.intents, intent)
	return "1-0", nil
}

func TestReconciler_Sweep(t *testing.T) {
	confirmed := donation(1, model.DonationStatusPendingVerification)
	completedNoReceipt := donation(2, model.DonationStatusCompleted)
	completedWithReceipt := donation(3, model.DonationStatusCompleted)
	completedWithReceipt.ReceiptSent = true

	lister := &fakeLister{byStatus: map[model.DonationStatus][]*model.Donation{
		model.DonationStatusPendingVerification: {confirmed},
		model.DonationStatusCompleted:           {completedNoReceipt, completedWithReceipt},
	}}

	ledger := &fakeLedger{}
	// donation 1 already had its confirmation delivered
	_, err := ledger.Create(context.Background(), &model.NotificationRecord{
		DonationID: 1,
		Purpose:    model.NotificationPurposeConfirmation,
		PriorState: model.DonationStatusPendingPayment,
	})
	require.NoError(t, err)

	publisher := &fakePublisher{}
	r := NewReconciler(lister, ledger, publisher, time.Minute)

	require.NoError(t, r.Sweep(context.Background()))

	require.Len(t, publisher.intents, 1, "only the receipt-less completed donation is republished")
	assert.Equal(t, int64(2), publisher.intents[0].DonationID)
	assert.Equal(t, model.NotificationPurposeReceipt, publisher.intents[0].Purpose)
}

func TestReconciler_SweepMissingConfirmation(t *testing.T) {
	pending := donation(5, model.DonationStatusPendingVerification)

	lister := &fakeLister{byStatus: map[model.DonationStatus][]*model.Donation{
		model.DonationStatusPendingVerification: {pending},
	}}
	publisher := &fakePublisher{}
	r := NewReconciler(lister, &fakeLedger{}, publisher, time.Minute)

	require.NoError(t, r.Sweep(context.Background()))

	require.Len(t, publisher.intents, 1)
	assert.Equal(t, int64(5), publisher.intents[0].DonationID)
	assert.Equal(t, model.NotificationPurposeConfirmation, publisher.intents[0].Purpose)
	assert.Equal(t, model.DonationStatusPendingPayment, publisher.intents[0].PriorState)
}

func TestReconciler_SuppressedReceiptNotRepublished(t *testing.T) {
	suppressed := donation(9, model.DonationStatusCompleted)

	lister := &fakeLister{byStatus: map[model.DonationStatus][]*model.Donation{
		model.DonationStatusCompleted: {suppressed},
	}}

	// the processor recorded a suppressed receipt: the donor had no email
	ledger := &fakeLedger{}
	_, err := ledger.Create(context.Background(), &model.NotificationRecord{
		DonationID: 9,
		Purpose:    model.NotificationPurposeReceipt,
		PriorState: model.DonationStatusPendingVerification,
		Suppressed: true,
	})
	require.NoError(t, err)

	publisher := &fakePublisher{}
	r := NewReconciler(lister, ledger, publisher, time.Minute)

	require.NoError(t, r.Sweep(context.Background()))
	assert.Empty(t, publisher.intents, "a suppressed receipt is final, not retried")
}

func TestReconciler_DefaultInterval(t *testing.T) {
	r := NewReconciler(&fakeLister{}, &fakeLedger{}, &fakePublisher{}, 0)
	assert.Equal(t, 5*time.Minute, r.Interval())
}
