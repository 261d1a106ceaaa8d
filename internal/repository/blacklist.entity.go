package repository

import (
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
)

type BlacklistEntryEntity struct {
	ID        int64      `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Kind      string     `db:"kind"       gorm:"column:kind;not null;uniqueIndex:idx_blacklist_kind_value"`
	Value     string     `db:"value"      gorm:"column:value;not null;uniqueIndex:idx_blacklist_kind_value"`
	Reason    string     `db:"reason"     gorm:"column:reason"`
	IsActive  bool       `db:"is_active"  gorm:"column:is_active;not null;index"`
	ExpiresAt *time.Time `db:"expires_at" gorm:"column:expires_at"`
	CreatedBy int64      `db:"created_by" gorm:"column:created_by"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (BlacklistEntryEntity) TableName() string {
	return "blacklist_entries"
}

func toBlacklistEntryEntity(e *model.BlacklistEntry) *BlacklistEntryEntity {
	if e == nil {
		return nil
	}
	return &BlacklistEntryEntity{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Value:     e.Value,
		Reason:    e.Reason,
		IsActive:  e.IsActive,
		ExpiresAt: e.ExpiresAt,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
	}
}

func toBlacklistEntryModel(e *BlacklistEntryEntity) *model.BlacklistEntry {
	if e == nil {
		return nil
	}
	return &model.BlacklistEntry{
		ID:        e.ID,
		Kind:      model.BlacklistKind(e.Kind),
		Value:     e.Value,
		Reason:    e.Reason,
		IsActive:  e.IsActive,
		ExpiresAt: e.ExpiresAt,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
	}
}

func toBlacklistEntryModels(entities []*BlacklistEntryEntity) []*model.BlacklistEntry {
	if entities == nil {
		return nil
	}
	models := make([]*model.BlacklistEntry, len(entities))
	for i, e := range entities {
		models[i] = toBlacklistEntryModel(e)
	}
	return models
}
