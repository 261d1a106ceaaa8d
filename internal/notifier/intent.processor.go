package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alumniport/donation-gateway/internal/mailer"
	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/queue"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/alumniport/donation-gateway/pkg/prom"
)

type DonationReader interface {
	GetByID(ctx context.Context, id int64) (*model.Donation, error)
	SetReceiptSent(ctx context.Context, id int64) error
}

type CampaignReader interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
}

type RecordLedger interface {
	Create(ctx context.Context, n *model.NotificationRecord) (*model.NotificationRecord, error)
	Exists(ctx context.Context, donationID int64, purpose model.NotificationPurpose, priorState model.DonationStatus) (bool, error)
	ReceiptExists(ctx context.Context, donationID int64) (bool, error)
	ReceiptRecorded(ctx context.Context, donationID int64) (bool, error)
}

type MailSender interface {
	Send(ctx context.Context, email *mailer.Email) (string, error)
}

// IntentProcessor turns one queued intent into at most one delivered email.
// The ledger's unique index is the final dedup authority; the Exists checks
// just avoid pointless sends.
type IntentProcessor struct {
	donations DonationReader
	campaigns CampaignReader
	records   RecordLedger
	sender    MailSender
	renderer  *Renderer
	clock     func() time.Time
}

func NewIntentProcessor(donations DonationReader, campaigns CampaignReader, records RecordLedger, sender MailSender, renderer *Renderer) *IntentProcessor {
	return &IntentProcessor{
		donations: donations,
		campaigns: campaigns,
		records:   records,
		sender:    sender,
		renderer:  renderer,
		clock:     time.Now,
	}
}

func (p *IntentProcessor) GetType() string {
	return "notification-intent"
}

// Process handles one intent. Returning nil acks the message; returning an
// error leaves it on the stream for a bounded-backoff retry.
func (p *IntentProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var intent model.NotificationIntent
	if err := json.Unmarshal(queueMessage.Data, &intent); err != nil {
		logger.Error("failed to unmarshal notification intent", "error", err)
		return err // malformed payload heads for the DLQ
	}

	d, err := p.donations.GetByID(ctx, intent.DonationID)
	if errors.Is(err, repository.ErrDonationNotFound) {
		logger.Warn("intent references missing donation, dropping", "donation_id", intent.DonationID)
		return nil
	}
	if err != nil {
		return err
	}

	// An obsolete status_update is dropped when the donation moved on before
	// the retry landed. Confirmation and receipt are never superseded.
	if intent.Purpose == model.NotificationPurposeStatusUpdate &&
		intent.NewState != "" && d.Status != intent.NewState {
		logger.Info("dropping superseded status update",
			"donation_id", d.ID, "intended", intent.NewState, "current", d.Status)
		return nil
	}

	if done, err := p.alreadyDelivered(ctx, &intent); err != nil {
		return err
	} else if done {
		return nil
	}

	recipient := d.RecipientEmail()
	if recipient == "" {
		return p.suppress(ctx, &intent, "recipient_missing")
	}

	campaignTitle := ""
	if c, err := p.campaigns.GetByID(ctx, d.CampaignID); err == nil {
		campaignTitle = c.Title
	}

	email := p.renderer.Render(intent.Purpose, d, campaignTitle)

	transport, err := p.sender.Send(ctx, email)
	if err != nil {
		logger.Error("notification send failed, will retry",
			"donation_id", d.ID, "purpose", intent.Purpose, "error", err)
		return err
	}

	record := &model.NotificationRecord{
		DonationID: intent.DonationID,
		Purpose:    intent.Purpose,
		PriorState: intent.PriorState,
		Recipient:  recipient,
		SentAt:     p.clock().UTC(),
	}
	if _, err := p.records.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrNotificationDuplicate) {
			// a concurrent consumer won the race after our Exists check
			return nil
		}
		logger.Error("notification sent but ledger write failed",
			"donation_id", d.ID, "purpose", intent.Purpose, "error", err)
		return nil // never resend a delivered email
	}

	if intent.Purpose == model.NotificationPurposeReceipt {
		if err := p.donations.SetReceiptSent(ctx, d.ID); err != nil {
			logger.Error("failed to flag receipt_sent", "donation_id", d.ID, "error", err)
		}
	}

	prom.IncNotificationSent(string(intent.Purpose))
	logger.Info("notification delivered",
		"donation_id", d.ID, "purpose", intent.Purpose, "transport", transport)
	return nil
}

func (p *IntentProcessor) alreadyDelivered(ctx context.Context, intent *model.NotificationIntent) (bool, error) {
	if intent.Purpose == model.NotificationPurposeReceipt {
		return p.records.ReceiptExists(ctx, intent.DonationID)
	}
	return p.records.Exists(ctx, intent.DonationID, intent.Purpose, intent.PriorState)
}

func (p *IntentProcessor) suppress(ctx context.Context, intent *model.NotificationIntent, reason string) error {
	record := &model.NotificationRecord{
		DonationID: intent.DonationID,
		Purpose:    intent.Purpose,
		PriorState: intent.PriorState,
		Suppressed: true,
		SentAt:     p.clock().UTC(),
	}
	if _, err := p.records.Create(ctx, record); err != nil && !errors.Is(err, repository.ErrNotificationDuplicate) {
		return err
	}
	prom.IncNotificationSuppressed(string(intent.Purpose), reason)
	logger.Warn("notification suppressed",
		"donation_id", intent.DonationID, "purpose", intent.Purpose, "reason", reason)
	return nil
}
