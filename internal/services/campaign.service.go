package services

import (
	"context"
	"errors"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/repository"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrPaymentUnavailable = errors.New("no active payment configuration for campaign")
	ErrDonationsClosed    = errors.New("campaign is not accepting donations")
)

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	GetBySlug(ctx context.Context, slug string) (*model.Campaign, error)
	Lock(ctx context.Context, id int64) error
	SumCompleted(ctx context.Context, id int64) (decimal.Decimal, error)
	SetCurrentAmount(ctx context.Context, id int64, amount decimal.Decimal) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type PaymentConfigRepository interface {
	Create(ctx context.Context, p *model.PaymentConfig) (*model.PaymentConfig, error)
	GetByID(ctx context.Context, id int64) (*model.PaymentConfig, error)
	GetActive(ctx context.Context) (*model.PaymentConfig, error)
	Activate(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64) error
}

type CampaignService struct {
	campaignRepo CampaignRepository
	paymentRepo  PaymentConfigRepository
}

func NewCampaignService(campaignRepo CampaignRepository, paymentRepo PaymentConfigRepository) *CampaignService {
	return &CampaignService{
		campaignRepo: campaignRepo,
		paymentRepo:  paymentRepo,
	}
}

func (s *CampaignService) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	c, err := s.campaignRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrCampaignNotFound) {
		return nil, ErrCampaignNotFound
	}
	return c, err
}

func (s *CampaignService) GetBySlug(ctx context.Context, slug string) (*model.Campaign, error) {
	c, err := s.campaignRepo.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrCampaignNotFound) {
		return nil, ErrCampaignNotFound
	}
	return c, err
}

// ResolveActive returns the payment config backing a campaign's donate page,
// or nil when the campaign cannot accept payments right now. Donation
// creation treats nil as PaymentUnavailable.
func (s *CampaignService) ResolveActive(ctx context.Context, c *model.Campaign) (*model.PaymentConfig, error) {
	if c.PaymentConfigID == nil {
		return nil, nil
	}
	cfg, err := s.paymentRepo.GetByID(ctx, *c.PaymentConfigID)
	if errors.Is(err, repository.ErrPaymentConfigNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !cfg.Usable() {
		return nil, nil
	}
	return cfg, nil
}

// Recompute derives current_amount from the completed donations of one
// campaign. Writers on the same campaign serialize on an advisory lock, so
// concurrent completions each observe a consistent snapshot and the last
// write is the correct total. Repeating the call yields the same value.
func (s *CampaignService) Recompute(ctx context.Context, campaignID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.campaignRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.campaignRepo.Lock(ctx, campaignID); err != nil {
			return err
		}
		sum, err := s.campaignRepo.SumCompleted(ctx, campaignID)
		if err != nil {
			return err
		}
		total = sum
		return s.campaignRepo.SetCurrentAmount(ctx, campaignID, sum)
	})
	if err != nil {
		return decimal.Zero, err
	}
	logger.Debug("campaign aggregate recomputed", "campaign_id", campaignID, "current_amount", total)
	return total, nil
}

func (s *CampaignService) CreatePaymentConfig(ctx context.Context, p *model.PaymentConfig) (*model.PaymentConfig, error) {
	p.IsActive = false // activation is a separate, serialized step
	return s.paymentRepo.Create(ctx, p)
}

func (s *CampaignService) ActivatePaymentConfig(ctx context.Context, id int64) error {
	return s.paymentRepo.Activate(ctx, id)
}
