package repository

import (
	"context"
	"testing"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentConfigRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewPaymentConfigRepository(db)
	ctx := context.Background()

	t.Run("create config successfully", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.PaymentConfig{
			Label:         "Alumni Office GCash",
			AccountNumber: "09170000001",
			AccountName:   "University Alumni Office",
			QRImagePath:   "qr/office.png",
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.IsActive)
	})

	t.Run("missing config", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 99999)
		assert.ErrorIs(t, err, ErrPaymentConfigNotFound)
	})
}

func TestPaymentConfigRepository_Activate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewPaymentConfigRepository(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, &model.PaymentConfig{
		Label: "Primary", AccountNumber: "09170000001", AccountName: "Alumni Office", QRImagePath: "qr/a.png",
	})
	require.NoError(t, err)
	second, err := repo.Create(ctx, &model.PaymentConfig{
		Label: "Backup", AccountNumber: "09170000002", AccountName: "Alumni Office", QRImagePath: "qr/b.png",
	})
	require.NoError(t, err)
	noQR, err := repo.Create(ctx, &model.PaymentConfig{
		Label: "Draft", AccountNumber: "09170000003", AccountName: "Alumni Office",
	})
	require.NoError(t, err)

	t.Run("no config is active initially", func(t *testing.T) {
		_, err := repo.GetActive(ctx)
		assert.ErrorIs(t, err, ErrPaymentConfigNotFound)
	})

	t.Run("activate makes the config current", func(t *testing.T) {
		require.NoError(t, repo.Activate(ctx, first.ID))

		active, err := repo.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, active.ID)
		assert.True(t, active.Usable())
	})

	t.Run("activating another config deactivates the previous one", func(t *testing.T) {
		require.NoError(t, repo.Activate(ctx, second.ID))

		active, err := repo.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID)

		prev, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, prev.IsActive)
	})

	t.Run("config without a QR image cannot go live", func(t *testing.T) {
		err := repo.Activate(ctx, noQR.ID)
		assert.ErrorIs(t, err, ErrQRImageRequired)

		// the previously active config is untouched
		active, err := repo.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID)
	})

	t.Run("missing config", func(t *testing.T) {
		err := repo.Activate(ctx, 99999)
		assert.ErrorIs(t, err, ErrPaymentConfigNotFound)
	})
}

func TestPaymentConfigRepository_Deactivate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewPaymentConfigRepository(db)
	ctx := context.Background()

	cfg, err := repo.Create(ctx, &model.PaymentConfig{
		Label: "Seasonal", AccountNumber: "09170000009", AccountName: "Alumni Office", QRImagePath: "qr/s.png",
	})
	require.NoError(t, err)
	require.NoError(t, repo.Activate(ctx, cfg.ID))

	t.Run("deactivate takes the donate page offline", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(ctx, cfg.ID))

		_, err := repo.GetActive(ctx)
		assert.ErrorIs(t, err, ErrPaymentConfigNotFound)
	})

	t.Run("missing config", func(t *testing.T) {
		err := repo.Deactivate(ctx, 99999)
		assert.ErrorIs(t, err, ErrPaymentConfigNotFound)
	})
}
