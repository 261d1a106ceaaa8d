package repository

import (
	"context"
	"errors"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrPaymentConfigNotFound = errors.New("payment config not found")
	ErrQRImageRequired       = errors.New("payment config has no QR image")
)

type PaymentConfigRepository struct {
	*pg.DB
}

func NewPaymentConfigRepository(db *pg.DB) *PaymentConfigRepository {
	return &PaymentConfigRepository{
		db,
	}
}

func (r *PaymentConfigRepository) Create(ctx context.Context, p *model.PaymentConfig) (*model.PaymentConfig, error) {
	entity := toPaymentConfigEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentConfigModel(entity), nil
}

func (r *PaymentConfigRepository) GetByID(ctx context.Context, id int64) (*model.PaymentConfig, error) {
	var entity PaymentConfigEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPaymentConfigModel(&entity), nil
}

func (r *PaymentConfigRepository) GetActive(ctx context.Context) (*model.PaymentConfig, error) {
	var entity PaymentConfigEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "is_active = ?", true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPaymentConfigModel(&entity), nil
}

// Activate flips the target config active and deactivates every peer inside
// one transaction, preserving the at-most-one-active invariant. A config
// without a QR image cannot be activated.
func (r *PaymentConfigRepository) Activate(ctx context.Context, id int64) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.AdvisoryLock(ctx, pg.LockClassPaymentConfig, 0); err != nil {
			return err
		}

		var entity PaymentConfigEntity
		err := r.Write(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentConfigNotFound
		}
		if err != nil {
			return err
		}
		if entity.QRImagePath == "" {
			return ErrQRImageRequired
		}

		if err := r.Write(ctx).WithContext(ctx).
			Model(&PaymentConfigEntity{}).
			Where("id <> ? AND is_active = ?", id, true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		return r.Write(ctx).WithContext(ctx).
			Model(&PaymentConfigEntity{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	})
}

func (r *PaymentConfigRepository) Deactivate(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&PaymentConfigEntity{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentConfigNotFound
	}
	return nil
}
