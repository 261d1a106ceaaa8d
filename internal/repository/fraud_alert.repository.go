package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrFraudAlertNotFound = errors.New("fraud alert not found")
)

type FraudAlertRepository struct {
	*pg.DB
}

func NewFraudAlertRepository(db *pg.DB) *FraudAlertRepository {
	return &FraudAlertRepository{
		db,
	}
}

func (r *FraudAlertRepository) Create(ctx context.Context, a *model.FraudAlert) (*model.FraudAlert, error) {
	entity := toFraudAlertEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toFraudAlertModel(entity), nil
}

func (r *FraudAlertRepository) GetByID(ctx context.Context, id int64) (*model.FraudAlert, error) {
	var entity FraudAlertEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFraudAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return toFraudAlertModel(&entity), nil
}

func (r *FraudAlertRepository) ListByDonation(ctx context.Context, donationID int64) ([]*model.FraudAlert, error) {
	var entities []*FraudAlertEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("donation_id = ?", donationID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toFraudAlertModels(entities), nil
}

func (r *FraudAlertRepository) ListByStatus(ctx context.Context, status model.FraudAlertStatus, limit, offset int) ([]*model.FraudAlert, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&FraudAlertEntity{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*FraudAlertEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toFraudAlertModels(entities), total, nil
}

// HasBlockingPending reports whether the donation carries a pending alert of
// high or critical severity.
func (r *FraudAlertRepository) HasBlockingPending(ctx context.Context, donationID int64) (bool, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&FraudAlertEntity{}).
		Where("donation_id = ? AND status = ? AND severity IN ?",
			donationID,
			string(model.FraudAlertStatusPending),
			[]string{string(model.FraudSeverityHigh), string(model.FraudSeverityCritical)}).
		Count(&n).Error
	return n > 0, err
}

// Review sets the reviewer decision on one alert.
func (r *FraudAlertRepository) Review(ctx context.Context, id int64, status model.FraudAlertStatus, reviewerID int64, notes string, at time.Time) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&FraudAlertEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           string(status),
			"reviewed_by":      reviewerID,
			"reviewed_at":      at,
			"resolution_notes": notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFraudAlertNotFound
	}
	return nil
}
