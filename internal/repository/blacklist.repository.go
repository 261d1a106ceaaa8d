package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/pg"
)

var (
	ErrBlacklistEntryNotFound = errors.New("blacklist entry not found")
	ErrBlacklistDuplicate     = errors.New("blacklist entry already exists for kind and value")
)

type BlacklistRepository struct {
	*pg.DB
}

func NewBlacklistRepository(db *pg.DB) *BlacklistRepository {
	return &BlacklistRepository{
		db,
	}
}

func (r *BlacklistRepository) Insert(ctx context.Context, e *model.BlacklistEntry) (*model.BlacklistEntry, error) {
	entity := toBlacklistEntryEntity(e)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBlacklistDuplicate
		}
		return nil, err
	}

	return toBlacklistEntryModel(entity), nil
}

func (r *BlacklistRepository) Deactivate(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&BlacklistEntryEntity{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBlacklistEntryNotFound
	}
	return nil
}

// QueryExact returns the active entries matching (kind, value) exactly,
// filtering out expired rows. Constant time via the (kind, value) index.
func (r *BlacklistRepository) QueryExact(ctx context.Context, kind model.BlacklistKind, value string, now time.Time) ([]*model.BlacklistEntry, error) {
	var entities []*BlacklistEntryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("kind = ? AND value = ? AND is_active = ?", string(kind), value, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toBlacklistEntryModels(entities), nil
}

// ActivePatterns returns the active name_pattern entries; the caller matches
// them as case-insensitive regexes. The pattern set is expected to be small.
func (r *BlacklistRepository) ActivePatterns(ctx context.Context, now time.Time) ([]*model.BlacklistEntry, error) {
	var entities []*BlacklistEntryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("kind = ? AND is_active = ?", string(model.BlacklistKindNamePattern), true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toBlacklistEntryModels(entities), nil
}
