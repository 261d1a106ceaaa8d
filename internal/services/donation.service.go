package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/reference"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/alumniport/donation-gateway/pkg/prom"
)

var (
	ErrDonationNotFound      = errors.New("donation not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrReferenceExhausted    = errors.New("reference number retry budget exhausted")
	ErrReferenceMismatch     = errors.New("reference number does not match donation")
	ErrProofNotExpected      = errors.New("donation is not awaiting payment proof")
	ErrOverrideNotesRequired = errors.New("completing a donation with a pending blocking alert requires verification notes")
)

type DonationRepository interface {
	Create(ctx context.Context, d *model.Donation) (*model.Donation, error)
	GetByID(ctx context.Context, id int64) (*model.Donation, error)
	GetByReference(ctx context.Context, ref string) (*model.Donation, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Donation, error)
	Save(ctx context.Context, d *model.Donation) error
	List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type FraudAlertStore interface {
	Create(ctx context.Context, a *model.FraudAlert) (*model.FraudAlert, error)
	HasBlockingPending(ctx context.Context, donationID int64) (bool, error)
}

// FraudEvaluator is the rule engine run after proof intake.
type FraudEvaluator interface {
	Evaluate(ctx context.Context, d *model.Donation, meta model.RequestMeta) []*model.FraudAlert
}

// IntentPublisher pushes notification intents onto the stream consumed by
// the dispatcher.
type IntentPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type DonationService struct {
	donationRepo DonationRepository
	alertRepo    FraudAlertStore
	campaigns    *CampaignService
	engine       FraudEvaluator
	refGen       *reference.Generator
	intents      IntentPublisher
}

func NewDonationService(
	donationRepo DonationRepository,
	alertRepo FraudAlertStore,
	campaigns *CampaignService,
	engine FraudEvaluator,
	refGen *reference.Generator,
	intents IntentPublisher,
) *DonationService {
	return &DonationService{
		donationRepo: donationRepo,
		alertRepo:    alertRepo,
		campaigns:    campaigns,
		engine:       engine,
		refGen:       refGen,
		intents:      intents,
	}
}

// Create validates and persists a new donation in pending_payment. The
// reference number is minted here exactly once; a unique-index collision is
// resolved with -NN suffixes until the retry budget runs out.
func (s *DonationService) Create(ctx context.Context, p model.DonationCreateRequest) (*model.Donation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.GetBySlug(ctx, p.CampaignSlug)
	if err != nil {
		return nil, err
	}
	if !campaign.AcceptsDonations() {
		return nil, ErrDonationsClosed
	}
	cfg, err := s.campaigns.ResolveActive(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrPaymentUnavailable
	}

	d := &model.Donation{
		CampaignID:    campaign.ID,
		DonorUserID:   p.DonorUserID,
		DonorName:     strings.TrimSpace(p.DonorName),
		DonorEmail:    strings.ToLower(strings.TrimSpace(p.DonorEmail)),
		Amount:        p.Amount.Round(2),
		DonatedAt:     time.Now().UTC(),
		Status:        model.DonationStatusPendingPayment,
		IsAnonymous:   p.IsAnonymous,
		Message:       strings.TrimSpace(p.Message),
		PaymentMethod: model.PaymentMethodGcash,
		ClientIP:      p.ClientIP,
	}

	base := s.refGen.Next()
	d.ReferenceNumber = base

	var created *model.Donation
	for attempt := 0; ; attempt++ {
		created, err = s.donationRepo.Create(ctx, d)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return nil, err
		}
		alt, altErr := s.refGen.Alternate(base, attempt+1)
		if altErr != nil {
			logger.Error("reference retry budget exhausted", "base", base)
			return nil, ErrReferenceExhausted
		}
		d.ReferenceNumber = alt
	}

	prom.IncDonationCreated(string(created.Status))
	logger.Info("donation created",
		"donation_id", created.ID,
		"reference", created.ReferenceNumber,
		"campaign_id", created.CampaignID,
		"amount", created.Amount.String())
	return created, nil
}

func (s *DonationService) Get(ctx context.Context, id int64) (*model.Donation, error) {
	d, err := s.donationRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrDonationNotFound) {
		return nil, ErrDonationNotFound
	}
	return d, err
}

func (s *DonationService) List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error) {
	return s.donationRepo.List(ctx, f)
}

// ProofAttachment is the validated, already-persisted upload handed over by
// the proof endpoint.
type ProofAttachment struct {
	Path string
	MD5  string
}

// AttachProof moves a pending_payment donation forward once its payment
// proof has been stored. The fraud engine runs inside the same transaction
// as the state write, so a blocking alert and the disputed status commit
// together. Returns the donation in its post-transition state.
func (s *DonationService) AttachProof(ctx context.Context, donationID int64, referenceNumber string, proof ProofAttachment, meta model.RequestMeta) (*model.Donation, error) {
	var updated *model.Donation
	var priorState model.DonationStatus

	err := s.donationRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		d, err := s.donationRepo.GetForUpdate(ctx, donationID)
		if errors.Is(err, repository.ErrDonationNotFound) {
			return ErrDonationNotFound
		}
		if err != nil {
			return err
		}
		if d.ReferenceNumber != strings.TrimSpace(referenceNumber) {
			return ErrReferenceMismatch
		}
		if d.Status != model.DonationStatusPendingPayment {
			return ErrProofNotExpected
		}

		priorState = d.Status
		d.ProofPath = proof.Path
		d.ProofHash = proof.MD5
		if meta.ClientIP == "" {
			meta.ClientIP = d.ClientIP
		}

		alerts := s.engine.Evaluate(ctx, d, meta)
		for _, a := range alerts {
			if _, err := s.alertRepo.Create(ctx, a); err != nil {
				return fmt.Errorf("create fraud alert: %w", err)
			}
			prom.IncFraudAlert(string(a.Kind), string(a.Severity))
		}

		next := model.DonationStatusPendingVerification
		if len(alerts) > 0 {
			logger.Warn("fraud alerts raised on proof intake",
				"donation_id", d.ID, "alerts", len(alerts), "risk_score", model.RiskScore(alerts))
		}
		if blocking(alerts) {
			next = model.DonationStatusDisputed
		}
		d.Status = next

		if err := s.donationRepo.Save(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncDonationTransition(string(priorState), string(updated.Status))

	switch updated.Status {
	case model.DonationStatusPendingVerification:
		s.publishIntent(ctx, updated.ID, model.NotificationPurposeConfirmation, priorState, updated.Status)
	case model.DonationStatusDisputed:
		s.publishIntent(ctx, updated.ID, model.NotificationPurposeStatusUpdate, priorState, updated.Status)
	}
	return updated, nil
}

func blocking(alerts []*model.FraudAlert) bool {
	for _, a := range alerts {
		if a.Severity.Blocking() {
			return true
		}
	}
	return false
}

// TransitionParams describes one staff-driven state change.
type TransitionParams struct {
	NewStatus     model.DonationStatus
	ActorID       int64
	Notes         string
	ExternalTxnID string
}

// Transition applies one edge of the donation state machine under a row
// lock. Entering a terminal state for the first time stamps verified_at and
// verified_by. A transition into or out of completed triggers a campaign
// recompute after commit; recompute failure never rolls back the transition.
func (s *DonationService) Transition(ctx context.Context, donationID int64, p TransitionParams) (*model.Donation, error) {
	if !p.NewStatus.Valid() {
		return nil, ErrInvalidTransition
	}

	var updated *model.Donation
	var priorState model.DonationStatus

	err := s.donationRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		d, err := s.donationRepo.GetForUpdate(ctx, donationID)
		if errors.Is(err, repository.ErrDonationNotFound) {
			return ErrDonationNotFound
		}
		if err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(p.NewStatus) {
			return ErrInvalidTransition
		}

		// completing a disputed donation over a still-pending blocking alert
		// is an admin override and must be documented
		if d.Status == model.DonationStatusDisputed &&
			p.NewStatus == model.DonationStatusCompleted &&
			strings.TrimSpace(p.Notes) == "" {
			blocked, err := s.alertRepo.HasBlockingPending(ctx, d.ID)
			if err != nil {
				return err
			}
			if blocked {
				return ErrOverrideNotesRequired
			}
		}

		priorState = d.Status
		d.Status = p.NewStatus

		if p.NewStatus.IsTerminal() && d.VerifiedAt == nil {
			now := time.Now().UTC()
			d.VerifiedAt = &now
			if p.ActorID != 0 {
				actor := p.ActorID
				d.VerifiedBy = &actor
			}
		}
		if p.Notes != "" {
			if d.VerificationNotes != "" {
				d.VerificationNotes += "\n"
			}
			d.VerificationNotes += p.Notes
		}
		if p.ExternalTxnID != "" {
			d.ExternalTxnID = p.ExternalTxnID
		}

		if err := s.donationRepo.Save(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncDonationTransition(string(priorState), string(updated.Status))
	if updated.VerifiedAt != nil {
		prom.ObserveVerificationLatency(updated.VerifiedAt.Sub(updated.CreatedAt).Seconds())
	}

	// completed-set membership changed: re-derive the campaign aggregate
	if (priorState == model.DonationStatusCompleted) != (updated.Status == model.DonationStatusCompleted) {
		if _, err := s.campaigns.Recompute(ctx, updated.CampaignID); err != nil {
			logger.Error("campaign recompute failed after transition; next recompute will repair",
				"campaign_id", updated.CampaignID, "donation_id", updated.ID, "error", err)
		}
	}

	switch updated.Status {
	case model.DonationStatusCompleted:
		s.publishIntent(ctx, updated.ID, model.NotificationPurposeStatusUpdate, priorState, updated.Status)
		s.publishIntent(ctx, updated.ID, model.NotificationPurposeReceipt, priorState, updated.Status)
	case model.DonationStatusFailed, model.DonationStatusDisputed:
		s.publishIntent(ctx, updated.ID, model.NotificationPurposeStatusUpdate, priorState, updated.Status)
	}

	return updated, nil
}

// publishIntent never fails the caller: the state change is already durable
// and the dispatcher's reconcile sweep re-derives lost intents.
func (s *DonationService) publishIntent(ctx context.Context, donationID int64, purpose model.NotificationPurpose, prior, next model.DonationStatus) {
	if s.intents == nil {
		return
	}
	intent := model.NotificationIntent{
		DonationID: donationID,
		Purpose:    purpose,
		PriorState: prior,
		NewState:   next,
		EmittedAt:  time.Now().UTC(),
	}
	if _, err := s.intents.PublishJSON(ctx, intent, map[string]string{"purpose": string(purpose)}); err != nil {
		logger.Error("failed to publish notification intent",
			"donation_id", donationID, "purpose", purpose, "error", err)
	}
}
