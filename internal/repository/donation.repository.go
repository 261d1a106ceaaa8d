package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDonationNotFound is returned when a donation does not exist.
	ErrDonationNotFound = errors.New("donation not found")
	// ErrDuplicateReference signals a reference_number unique-index collision.
	ErrDuplicateReference = errors.New("duplicate reference number")
)

type DonationRepository struct {
	*pg.DB
}

func NewDonationRepository(db *pg.DB) *DonationRepository {
	return &DonationRepository{
		db,
	}
}

// isUniqueViolation matches the unique-index error across postgres and the
// sqlite test double; gorm only translates it when TranslateError is on.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func (r *DonationRepository) Create(ctx context.Context, d *model.Donation) (*model.Donation, error) {
	entity := toDonationEntity(d)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	return toDonationModel(entity), nil
}

func (r *DonationRepository) GetByID(ctx context.Context, id int64) (*model.Donation, error) {
	var entity DonationEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDonationModel(&entity), nil
}

func (r *DonationRepository) GetByReference(ctx context.Context, ref string) (*model.Donation, error) {
	var entity DonationEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "reference_number = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDonationModel(&entity), nil
}

// GetForUpdate reads the donation through the write connection with a row
// lock so concurrent transitions on one donation are totally ordered. Must
// run inside WithinTransaction. The sqlite test double ignores the lock,
// its writes are serialized anyway.
func (r *DonationRepository) GetForUpdate(ctx context.Context, id int64) (*model.Donation, error) {
	q := r.Write(ctx).WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var entity DonationEntity
	err := q.First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDonationModel(&entity), nil
}

// Save persists mutated fields of an existing donation. The reference number
// is deliberately excluded: it is minted exactly once at first persistence.
func (r *DonationRepository) Save(ctx context.Context, d *model.Donation) error {
	updates := map[string]interface{}{
		"status":             string(d.Status),
		"proof_path":         d.ProofPath,
		"proof_hash":         d.ProofHash,
		"external_txn_id":    d.ExternalTxnID,
		"verification_notes": d.VerificationNotes,
		"verified_by":        d.VerifiedBy,
		"verified_at":        d.VerifiedAt,
		"receipt_sent":       d.ReceiptSent,
	}
	res := r.Write(ctx).WithContext(ctx).
		Model(&DonationEntity{}).
		Where("id = ?", d.ID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDonationNotFound
	}
	return nil
}

func (r *DonationRepository) SetReceiptSent(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&DonationEntity{}).
		Where("id = ?", id).
		Update("receipt_sent", true).Error
}

func (r *DonationRepository) List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DonationEntity{})

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.CampaignID != nil {
		q = q.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Search != nil && *f.Search != "" {
		needle := "%" + strings.TrimSpace(*f.Search) + "%"
		q = q.Where("reference_number LIKE ? OR donor_name LIKE ? OR donor_email LIKE ?", needle, needle, needle)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*DonationEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toDonationModels(entities), total, nil
}

/* ----------------------------- fraud lookups ------------------------------ */

// CountByEmailSince counts donations sharing a donor email created after the
// cutoff, excluding the donation under evaluation.
func (r *DonationRepository) CountByEmailSince(ctx context.Context, email string, since time.Time, excludeID int64) (int64, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&DonationEntity{}).
		Where("donor_email = ? AND created_at >= ? AND id <> ?", email, since, excludeID).
		Count(&n).Error
	return n, err
}

// CountCompletedSameAmountSince counts completed donations with an identical
// amount created after the cutoff.
func (r *DonationRepository) CountCompletedSameAmountSince(ctx context.Context, amount decimal.Decimal, since time.Time, excludeID int64) (int64, error) {
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&DonationEntity{}).
		Where("status = ? AND amount = ? AND created_at >= ? AND id <> ?",
			string(model.DonationStatusCompleted), amount, since, excludeID).
		Count(&n).Error
	return n, err
}

// FindEarlierByProofHash returns the oldest prior donation carrying the same
// proof hash, or ErrDonationNotFound.
func (r *DonationRepository) FindEarlierByProofHash(ctx context.Context, hash string, excludeID int64) (*model.Donation, error) {
	var entity DonationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("proof_hash = ? AND id <> ?", hash, excludeID).
		Order("id ASC").
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDonationModel(&entity), nil
}

/* --------------------------- analytics queries ---------------------------- */

type totalsRow struct {
	Count int64
	Sum   decimal.NullDecimal
}

// TotalsBetween aggregates completed donations created inside the window.
func (r *DonationRepository) TotalsBetween(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	var row totalsRow
	err := r.Read(ctx).WithContext(ctx).
		Model(&DonationEntity{}).
		Select("COUNT(*) AS count, SUM(amount) AS sum").
		Where("status = ? AND created_at >= ? AND created_at <= ?",
			string(model.DonationStatusCompleted), from, to).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	sum := decimal.Zero
	if row.Sum.Valid {
		sum = row.Sum.Decimal
	}
	return row.Count, sum, nil
}

// CompletedBetween returns completed donations created in the window, for
// Go-side date bucketing in the configured zone.
func (r *DonationRepository) CompletedBetween(ctx context.Context, from, to time.Time) ([]*model.Donation, error) {
	var entities []*DonationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at >= ? AND created_at <= ?",
			string(model.DonationStatusCompleted), from, to).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toDonationModels(entities), nil
}

type campaignPerformanceRow struct {
	CampaignID int64
	Title      string
	Count      int64
	Sum        decimal.NullDecimal
}

// CampaignPerformanceBetween groups completed donations by campaign, ordered
// by raised amount descending.
func (r *DonationRepository) CampaignPerformanceBetween(ctx context.Context, from, to time.Time) ([]*model.CampaignPerformance, error) {
	var rows []campaignPerformanceRow
	err := r.Read(ctx).WithContext(ctx).
		Table("donations AS d").
		Select("d.campaign_id AS campaign_id, c.title AS title, COUNT(*) AS count, SUM(d.amount) AS sum").
		Joins("JOIN campaigns AS c ON c.id = d.campaign_id").
		Where("d.status = ? AND d.created_at >= ? AND d.created_at <= ?",
			string(model.DonationStatusCompleted), from, to).
		Group("d.campaign_id, c.title").
		Order("sum DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.CampaignPerformance, len(rows))
	for i, row := range rows {
		sum := decimal.Zero
		if row.Sum.Valid {
			sum = row.Sum.Decimal
		}
		avg := decimal.Zero
		if row.Count > 0 {
			avg = sum.Div(decimal.NewFromInt(row.Count)).Round(2)
		}
		out[i] = &model.CampaignPerformance{
			CampaignID: row.CampaignID,
			Title:      row.Title,
			Sum:        sum,
			Count:      row.Count,
			Average:    avg,
		}
	}
	return out, nil
}

// VerifiedBetween returns donations whose verification timestamp falls in
// the window, for latency and per-admin roll-ups.
func (r *DonationRepository) VerifiedBetween(ctx context.Context, from, to time.Time) ([]*model.Donation, error) {
	var entities []*DonationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("verified_at IS NOT NULL AND verified_at >= ? AND verified_at <= ?", from, to).
		Order("verified_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toDonationModels(entities), nil
}
