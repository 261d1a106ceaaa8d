package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/logger"
)

// verifiable is the set of statuses staff may drive a donation into.
var verifiable = map[model.DonationStatus]struct{}{
	model.DonationStatusCompleted: {},
	model.DonationStatusFailed:    {},
	model.DonationStatusDisputed:  {},
}

var ErrUnverifiableStatus = errors.New("status is not a valid verification outcome")

// CampaignTitleReader resolves campaign titles for export rows.
type CampaignTitleReader interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
}

// VerificationService is the staff workbench: single and bulk transitions
// plus the filtered CSV export.
type VerificationService struct {
	donations *DonationService
	campaigns CampaignTitleReader
	location  *time.Location
}

func NewVerificationService(donations *DonationService, campaigns CampaignTitleReader, location *time.Location) *VerificationService {
	if location == nil {
		location = time.UTC
	}
	return &VerificationService{
		donations: donations,
		campaigns: campaigns,
		location:  location,
	}
}

// Verify applies a single staff-driven transition. Unlike the raw state
// machine, the workbench only accepts verification outcomes; refunds go
// through their own endpoint.
func (s *VerificationService) Verify(ctx context.Context, donationID int64, newStatus model.DonationStatus, actorID int64, notes, externalTxnID string) (*model.Donation, error) {
	if _, ok := verifiable[newStatus]; !ok {
		return nil, ErrUnverifiableStatus
	}
	return s.donations.Transition(ctx, donationID, TransitionParams{
		NewStatus:     newStatus,
		ActorID:       actorID,
		Notes:         notes,
		ExternalTxnID: externalTxnID,
	})
}

// BulkItem is the per-donation outcome of a bulk verification.
type BulkItem struct {
	DonationID int64  `json:"donation_id"`
	OK         bool   `json:"ok"`
	Reason     string `json:"reason,omitempty"`
}

// BulkVerify processes each id independently; one failure never aborts the
// rest. Unreachable transitions are reported as invalid_transition, missing
// donations as not_found.
func (s *VerificationService) BulkVerify(ctx context.Context, donationIDs []int64, newStatus model.DonationStatus, actorID int64, notes string) ([]BulkItem, error) {
	if _, ok := verifiable[newStatus]; !ok {
		return nil, ErrUnverifiableStatus
	}

	items := make([]BulkItem, 0, len(donationIDs))
	for _, id := range donationIDs {
		item := BulkItem{DonationID: id}
		_, err := s.donations.Transition(ctx, id, TransitionParams{
			NewStatus: newStatus,
			ActorID:   actorID,
			Notes:     notes,
		})
		switch {
		case err == nil:
			item.OK = true
		case errors.Is(err, ErrInvalidTransition):
			item.Reason = "invalid_transition"
		case errors.Is(err, ErrOverrideNotesRequired):
			item.Reason = "notes_required"
		case errors.Is(err, ErrDonationNotFound):
			item.Reason = "not_found"
		default:
			logger.Error("bulk verify item failed", "donation_id", id, "error", err)
			item.Reason = "internal_error"
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *VerificationService) List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error) {
	return s.donations.List(ctx, f)
}

var csvHeader = []string{
	"reference_number", "donor_name", "donor_email", "campaign", "amount",
	"status", "payment_method", "external_txn_id", "created_at",
	"verification_at", "verified_by", "notes", "is_anonymous",
}

// ExportCSV streams the filtered donation set as CSV. Anonymous rows mask
// the donor name and omit the email. Timestamps are rendered in the
// configured zone.
func (s *VerificationService) ExportCSV(ctx context.Context, w io.Writer, f model.DonationFilter) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	titles := map[int64]string{}
	title := func(id int64) string {
		if t, ok := titles[id]; ok {
			return t
		}
		c, err := s.campaigns.GetByID(ctx, id)
		if err != nil {
			titles[id] = ""
			return ""
		}
		titles[id] = c.Title
		return c.Title
	}

	const pageSize = 500
	f.Limit = pageSize
	f.Offset = 0
	for {
		page, _, err := s.donations.List(ctx, f)
		if err != nil {
			return err
		}
		for _, d := range page {
			if err := cw.Write(s.csvRow(d, title(d.CampaignID))); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			break
		}
		f.Offset += pageSize
	}

	cw.Flush()
	return cw.Error()
}

func (s *VerificationService) csvRow(d *model.Donation, campaignTitle string) []string {
	email := d.DonorEmail
	if d.IsAnonymous {
		email = ""
	}

	verifiedAt := ""
	if d.VerifiedAt != nil {
		verifiedAt = d.VerifiedAt.In(s.location).Format(time.RFC3339)
	}
	verifiedBy := ""
	if d.VerifiedBy != nil {
		verifiedBy = strconv.FormatInt(*d.VerifiedBy, 10)
	}
	anonymous := "No"
	if d.IsAnonymous {
		anonymous = "Yes"
	}

	return []string{
		d.ReferenceNumber,
		d.DisplayName(),
		email,
		campaignTitle,
		d.Amount.StringFixed(2),
		string(d.Status),
		d.PaymentMethod,
		d.ExternalTxnID,
		d.CreatedAt.In(s.location).Format(time.RFC3339),
		verifiedAt,
		verifiedBy,
		d.VerificationNotes,
		anonymous,
	}
}
