package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alumniport/donation-gateway/internal/mailer"
	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/queue"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDonations struct {
	byID        map[int64]*model.Donation
	receiptSent map[int64]bool
}

func (f *fakeDonations) GetByID(_ context.Context, id int64) (*model.Donation, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrDonationNotFound
	}
	return d, nil
}

func (f *fakeDonations) SetReceiptSent(_ context.Context, id int64) error {
	f.receiptSent[id] = true
	return nil
}

type fakeCampaigns struct{}

func (fakeCampaigns) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	return &model.Campaign{ID: id, Title: "Library Renovation Fund"}, nil
}

type fakeLedger struct {
	records []*model.NotificationRecord
}

func (f *fakeLedger) Create(_ context.Context, n *model.NotificationRecord) (*model.NotificationRecord, error) {
	for _, r := range f.records {
		if r.DonationID == n.DonationID && r.Purpose == n.Purpose && r.PriorState == n.PriorState {
			return nil, repository.ErrNotificationDuplicate
		}
	}
	f.records = append(f.records, n)
	return n, nil
}

func (f *fakeLedger) Exists(_ context.Context, donationID int64, purpose model.NotificationPurpose, priorState model.DonationStatus) (bool, error) {
	for _, r := range f.records {
		if r.DonationID == donationID && r.Purpose == purpose && r.PriorState == priorState {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) ReceiptExists(_ context.Context, donationID int64) (bool, error) {
	for _, r := range f.records {
		if r.DonationID == donationID && r.Purpose == model.NotificationPurposeReceipt && !r.Suppressed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) ReceiptRecorded(_ context.Context, donationID int64) (bool, error) {
	for _, r := range f.records {
		if r.DonationID == donationID && r.Purpose == model.NotificationPurposeReceipt {
			return true, nil
		}
	}
	return false, nil
}

type fakeSender struct {
	sent []*mailer.Email
	err  error
}

func (f *fakeSender) Send(_ context.Context, email *mailer.Email) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return "primary", nil
}

func donation(id int64, status model.DonationStatus) *model.Donation {
	return &model.Donation{
		ID:              id,
		ReferenceNumber: "DON-2026-101010-AAA",
		CampaignID:      1,
		DonorName:       "Maria Santos",
		DonorEmail:      "maria@example.com",
		Amount:          decimal.NewFromInt(2500),
		DonatedAt:       time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Status:          status,
		CreatedAt:       time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func intentMessage(t *testing.T, intent model.NotificationIntent) *queue.Message {
	t.Helper()
	data, err := json.Marshal(intent)
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data}
}

func newTestProcessor(donations *fakeDonations, ledger *fakeLedger, sender *fakeSender) *IntentProcessor {
	return NewIntentProcessor(donations, fakeCampaigns{}, ledger, sender,
		NewRenderer("https://alumni.example.edu", time.UTC))
}

func TestIntentProcessor_Confirmation(t *testing.T) {
	donations := &fakeDonations{
		byID:        map[int64]*model.Donation{1: donation(1, model.DonationStatusPendingVerification)},
		receiptSent: map[int64]bool{},
	}
	ledger := &fakeLedger{}
	sender := &fakeSender{}
	p := newTestProcessor(donations, ledger, sender)

	msg := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeConfirmation,
		PriorState: model.DonationStatusPendingPayment,
		NewState:   model.DonationStatusPendingVerification,
	})

	require.NoError(t, p.Process(context.Background(), msg))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "maria@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "DON-2026-101010-AAA")
	assert.Contains(t, sender.sent[0].TextBody, "Library Renovation Fund")
	assert.NotEmpty(t, sender.sent[0].HTMLBody)

	require.Len(t, ledger.records, 1)
	assert.Equal(t, model.NotificationPurposeConfirmation, ledger.records[0].Purpose)
	assert.False(t, ledger.records[0].Suppressed)

	t.Run("repeat intent is deduplicated", func(t *testing.T) {
		require.NoError(t, p.Process(context.Background(), msg))
		assert.Len(t, sender.sent, 1)
		assert.Len(t, ledger.records, 1)
	})
}

func TestIntentProcessor_ReceiptOncePerDonation(t *testing.T) {
	donations := &fakeDonations{
		byID:        map[int64]*model.Donation{1: donation(1, model.DonationStatusCompleted)},
		receiptSent: map[int64]bool{},
	}
	ledger := &fakeLedger{}
	sender := &fakeSender{}
	p := newTestProcessor(donations, ledger, sender)

	first := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeReceipt,
		PriorState: model.DonationStatusPendingVerification,
		NewState:   model.DonationStatusCompleted,
	})
	require.NoError(t, p.Process(context.Background(), first))
	assert.Len(t, sender.sent, 1)
	assert.True(t, donations.receiptSent[1])

	// a later receipt intent with a different prior state still may not send
	second := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeReceipt,
		PriorState: model.DonationStatusDisputed,
		NewState:   model.DonationStatusCompleted,
	})
	require.NoError(t, p.Process(context.Background(), second))
	assert.Len(t, sender.sent, 1)
}

func TestIntentProcessor_RecipientMissing(t *testing.T) {
	d := donation(1, model.DonationStatusPendingVerification)
	d.DonorEmail = ""
	donations := &fakeDonations{byID: map[int64]*model.Donation{1: d}, receiptSent: map[int64]bool{}}
	ledger := &fakeLedger{}
	sender := &fakeSender{}
	p := newTestProcessor(donations, ledger, sender)

	msg := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeConfirmation,
		PriorState: model.DonationStatusPendingPayment,
	})

	require.NoError(t, p.Process(context.Background(), msg))
	assert.Empty(t, sender.sent)
	require.Len(t, ledger.records, 1)
	assert.True(t, ledger.records[0].Suppressed)
}

func TestIntentProcessor_SupersededStatusUpdateDropped(t *testing.T) {
	donations := &fakeDonations{
		byID:        map[int64]*model.Donation{1: donation(1, model.DonationStatusRefunded)},
		receiptSent: map[int64]bool{},
	}
	ledger := &fakeLedger{}
	sender := &fakeSender{}
	p := newTestProcessor(donations, ledger, sender)

	msg := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeStatusUpdate,
		PriorState: model.DonationStatusPendingVerification,
		NewState:   model.DonationStatusCompleted,
	})

	require.NoError(t, p.Process(context.Background(), msg))
	assert.Empty(t, sender.sent)
	assert.Empty(t, ledger.records)
}

func TestIntentProcessor_SendFailureRetries(t *testing.T) {
	donations := &fakeDonations{
		byID:        map[int64]*model.Donation{1: donation(1, model.DonationStatusPendingVerification)},
		receiptSent: map[int64]bool{},
	}
	ledger := &fakeLedger{}
	sender := &fakeSender{err: errors.New("transport down")}
	p := newTestProcessor(donations, ledger, sender)

	msg := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeConfirmation,
		PriorState: model.DonationStatusPendingPayment,
	})

	err := p.Process(context.Background(), msg)
	require.Error(t, err)
	assert.Empty(t, ledger.records, "no ledger row until the send lands")
}

func TestIntentProcessor_MissingDonationAcked(t *testing.T) {
	donations := &fakeDonations{byID: map[int64]*model.Donation{}, receiptSent: map[int64]bool{}}
	p := newTestProcessor(donations, &fakeLedger{}, &fakeSender{})

	msg := intentMessage(t, model.NotificationIntent{DonationID: 99, Purpose: model.NotificationPurposeConfirmation})
	assert.NoError(t, p.Process(context.Background(), msg))
}

func TestIntentProcessor_AnonymousDonorMasked(t *testing.T) {
	d := donation(1, model.DonationStatusCompleted)
	d.IsAnonymous = true
	donations := &fakeDonations{byID: map[int64]*model.Donation{1: d}, receiptSent: map[int64]bool{}}
	sender := &fakeSender{}
	p := newTestProcessor(donations, &fakeLedger{}, sender)

	msg := intentMessage(t, model.NotificationIntent{
		DonationID: 1,
		Purpose:    model.NotificationPurposeReceipt,
		PriorState: model.DonationStatusPendingVerification,
		NewState:   model.DonationStatusCompleted,
	})
	require.NoError(t, p.Process(context.Background(), msg))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].TextBody, "Dear Anonymous")
	assert.NotContains(t, sender.sent[0].TextBody, "Maria Santos")
}
