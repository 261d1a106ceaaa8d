package repository

import (
	"context"
	"errors"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrCampaignNotFound is returned when a campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

func (r *CampaignRepository) GetBySlug(ctx context.Context, slug string) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

// Lock serializes writers on one campaign. Must run inside WithinTransaction.
func (r *CampaignRepository) Lock(ctx context.Context, id int64) error {
	return r.AdvisoryLock(ctx, pg.LockClassCampaign, id)
}

// SumCompleted aggregates the amounts of completed donations for a campaign.
// It reads through the write connection so an in-flight transaction observes
// its own transition.
func (r *CampaignRepository) SumCompleted(ctx context.Context, id int64) (decimal.Decimal, error) {
	var raw decimal.NullDecimal
	err := r.Write(ctx).WithContext(ctx).
		Model(&DonationEntity{}).
		Select("SUM(amount)").
		Where("campaign_id = ? AND status = ?", id, string(model.DonationStatusCompleted)).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !raw.Valid {
		return decimal.Zero, nil
	}
	return raw.Decimal, nil
}

// SetCurrentAmount writes the derived aggregate. Only the recomputer calls
// this; donation code paths never touch the campaign row directly.
func (r *CampaignRepository) SetCurrentAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Update("current_amount", amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}
