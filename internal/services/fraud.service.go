package services

import (
	"context"
	"errors"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/pkg/logger"
)

var (
	ErrFraudAlertNotFound  = errors.New("fraud alert not found")
	ErrInvalidReviewStatus = errors.New("invalid review status")
	ErrBlacklistDuplicate  = errors.New("blacklist entry already exists")
)

type FraudAlertRepository interface {
	GetByID(ctx context.Context, id int64) (*model.FraudAlert, error)
	ListByDonation(ctx context.Context, donationID int64) ([]*model.FraudAlert, error)
	ListByStatus(ctx context.Context, status model.FraudAlertStatus, limit, offset int) ([]*model.FraudAlert, int64, error)
	HasBlockingPending(ctx context.Context, donationID int64) (bool, error)
	Review(ctx context.Context, id int64, status model.FraudAlertStatus, reviewerID int64, notes string, at time.Time) error
}

type BlacklistRepository interface {
	Insert(ctx context.Context, e *model.BlacklistEntry) (*model.BlacklistEntry, error)
	Deactivate(ctx context.Context, id int64) error
}

// FraudService is the staff review surface over alerts and the blacklist.
// Rule evaluation itself lives in the fraud engine; this service only
// handles dispositions after the fact.
type FraudService struct {
	alerts    FraudAlertRepository
	blacklist BlacklistRepository
}

func NewFraudService(alerts FraudAlertRepository, blacklist BlacklistRepository) *FraudService {
	return &FraudService{alerts: alerts, blacklist: blacklist}
}

func (s *FraudService) Get(ctx context.Context, id int64) (*model.FraudAlert, error) {
	a, err := s.alerts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrFraudAlertNotFound) {
		return nil, ErrFraudAlertNotFound
	}
	return a, err
}

func (s *FraudService) ListByStatus(ctx context.Context, status model.FraudAlertStatus, limit, offset int) ([]*model.FraudAlert, int64, error) {
	return s.alerts.ListByStatus(ctx, status, limit, offset)
}

func (s *FraudService) ListByDonation(ctx context.Context, donationID int64) ([]*model.FraudAlert, error) {
	return s.alerts.ListByDonation(ctx, donationID)
}

// RiskScore derives the display score for one donation from its alerts.
func (s *FraudService) RiskScore(ctx context.Context, donationID int64) (int, error) {
	alerts, err := s.alerts.ListByDonation(ctx, donationID)
	if err != nil {
		return 0, err
	}
	return model.RiskScore(alerts), nil
}

// Review records a reviewer decision on one alert. Clearing the last
// blocking alert does not release the donation automatically; staff resolve
// the disputed donation through the workbench.
func (s *FraudService) Review(ctx context.Context, alertID int64, status model.FraudAlertStatus, reviewerID int64, notes string) (*model.FraudAlert, error) {
	switch status {
	case model.FraudAlertStatusResolved, model.FraudAlertStatusFalsePositive, model.FraudAlertStatusInvestigating:
	default:
		return nil, ErrInvalidReviewStatus
	}

	err := s.alerts.Review(ctx, alertID, status, reviewerID, notes, time.Now().UTC())
	if errors.Is(err, repository.ErrFraudAlertNotFound) {
		return nil, ErrFraudAlertNotFound
	}
	if err != nil {
		return nil, err
	}

	a, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if status != model.FraudAlertStatusInvestigating {
		stillBlocked, err := s.alerts.HasBlockingPending(ctx, a.DonationID)
		if err == nil && !stillBlocked {
			logger.Info("donation has no remaining blocking alerts",
				"donation_id", a.DonationID, "alert_id", alertID)
		}
	}
	return a, nil
}

func (s *FraudService) AddBlacklistEntry(ctx context.Context, e *model.BlacklistEntry) (*model.BlacklistEntry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	entry, err := s.blacklist.Insert(ctx, e)
	if errors.Is(err, repository.ErrBlacklistDuplicate) {
		return nil, ErrBlacklistDuplicate
	}
	if err != nil {
		return nil, err
	}
	logger.Info("blacklist entry added", "kind", entry.Kind, "entry_id", entry.ID)
	return entry, nil
}

func (s *FraudService) RemoveBlacklistEntry(ctx context.Context, id int64) error {
	return s.blacklist.Deactivate(ctx, id)
}
