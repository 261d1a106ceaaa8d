package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistRepository_Insert(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBlacklistRepository(db)
	ctx := context.Background()

	t.Run("insert entry successfully", func(t *testing.T) {
		created, err := repo.Insert(ctx, &model.BlacklistEntry{
			Kind:      model.BlacklistKindEmail,
			Value:     "scammer@example.com",
			Reason:    "chargeback in march",
			IsActive:  true,
			CreatedBy: 7,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, model.BlacklistKindEmail, created.Kind)
		assert.True(t, created.IsActive)
	})

	t.Run("duplicate kind and value is rejected", func(t *testing.T) {
		_, err := repo.Insert(ctx, &model.BlacklistEntry{
			Kind:     model.BlacklistKindEmail,
			Value:    "scammer@example.com",
			IsActive: true,
		})
		assert.ErrorIs(t, err, ErrBlacklistDuplicate)
	})

	t.Run("same value under another kind is fine", func(t *testing.T) {
		_, err := repo.Insert(ctx, &model.BlacklistEntry{
			Kind:     model.BlacklistKindPhone,
			Value:    "scammer@example.com",
			IsActive: true,
		})
		require.NoError(t, err)
	})
}

func TestBlacklistRepository_Deactivate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBlacklistRepository(db)
	ctx := context.Background()

	t.Run("deactivate removes the entry from lookups", func(t *testing.T) {
		created, err := repo.Insert(ctx, &model.BlacklistEntry{
			Kind:     model.BlacklistKindIP,
			Value:    "203.0.113.9",
			IsActive: true,
		})
		require.NoError(t, err)

		require.NoError(t, repo.Deactivate(ctx, created.ID))

		got, err := repo.QueryExact(ctx, model.BlacklistKindIP, "203.0.113.9", time.Now())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("missing entry", func(t *testing.T) {
		err := repo.Deactivate(ctx, 99999)
		assert.ErrorIs(t, err, ErrBlacklistEntryNotFound)
	})
}

func TestBlacklistRepository_QueryExact(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBlacklistRepository(db)
	ctx := context.Background()
	now := time.Now()

	expired := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	_, err := repo.Insert(ctx, &model.BlacklistEntry{
		Kind: model.BlacklistKindEmail, Value: "active@example.com", IsActive: true,
	})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &model.BlacklistEntry{
		Kind: model.BlacklistKindEmail, Value: "expired@example.com", IsActive: true, ExpiresAt: &expired,
	})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &model.BlacklistEntry{
		Kind: model.BlacklistKindEmail, Value: "future@example.com", IsActive: true, ExpiresAt: &future,
	})
	require.NoError(t, err)

	t.Run("active entry matches", func(t *testing.T) {
		got, err := repo.QueryExact(ctx, model.BlacklistKindEmail, "active@example.com", now)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("expired entry is filtered out", func(t *testing.T) {
		got, err := repo.QueryExact(ctx, model.BlacklistKindEmail, "expired@example.com", now)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("entry expiring in the future still matches", func(t *testing.T) {
		got, err := repo.QueryExact(ctx, model.BlacklistKindEmail, "future@example.com", now)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("value under a different kind does not match", func(t *testing.T) {
		got, err := repo.QueryExact(ctx, model.BlacklistKindIP, "active@example.com", now)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestBlacklistRepository_ActivePatterns(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBlacklistRepository(db)
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Insert(ctx, &model.BlacklistEntry{
		Kind: model.BlacklistKindNamePattern, Value: "^test\\s+donor", IsActive: true,
	})
	require.NoError(t, err)
	inactive, err := repo.Insert(ctx, &model.BlacklistEntry{
		Kind: model.BlacklistKindNamePattern, Value: "^fake", IsActive: true,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(ctx, inactive.ID))
	_, err = repo.Insert(ctx, &model.BlacklistEntry{
		Kind: model.BlacklistKindEmail, Value: "plain@example.com", IsActive: true,
	})
	require.NoError(t, err)

	got, err := repo.ActivePatterns(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "^test\\s+donor", got[0].Value)
}
