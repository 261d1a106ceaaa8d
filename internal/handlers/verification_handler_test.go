package handlers

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Donation), args.Get(1).(int64), args.Error(2)
}

func (m *MockVerificationService) Verify(ctx context.Context, donationID int64, newStatus model.DonationStatus, actorID int64, notes, externalTxnID string) (*model.Donation, error) {
	args := m.Called(ctx, donationID, newStatus, actorID, notes, externalTxnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Donation), args.Error(1)
}

func (m *MockVerificationService) BulkVerify(ctx context.Context, donationIDs []int64, newStatus model.DonationStatus, actorID int64, notes string) ([]services.BulkItem, error) {
	args := m.Called(ctx, donationIDs, newStatus, actorID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.BulkItem), args.Error(1)
}

func (m *MockVerificationService) ExportCSV(ctx context.Context, w io.Writer, f model.DonationFilter) error {
	args := m.Called(ctx, w, f)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("reference_number,donor_name\n"))
	}
	return args.Error(0)
}

func TestVerificationHandler_ListDonations(t *testing.T) {
	t.Run("pending tab maps to pending_verification", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.DonationFilter) bool {
			return len(f.Statuses) == 1 &&
				f.Statuses[0] == model.DonationStatusPendingVerification &&
				f.Desc
		})).Return([]*model.Donation{{ID: 1}}, int64(1), nil)

		ctx := setupTestContext("GET", "/verification?tab=pending", nil)
		handler.ListDonations(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var resp donationListResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, int64(1), resp.Total)
		svc.AssertExpectations(t)
	})

	t.Run("filters parse from query", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.DonationFilter) bool {
			return f.Search != nil && *f.Search == "maria" &&
				f.CampaignID != nil && *f.CampaignID == 3 &&
				f.From != nil && f.To != nil &&
				!f.Desc && f.Limit == 25 && f.Offset == 50
		})).Return([]*model.Donation{}, int64(0), nil)

		ctx := setupTestContext("GET",
			"/verification?search=maria&campaign_id=3&date_from=2026-08-01&date_to=2026-08-28&sort=oldest&limit=25&offset=50", nil)
		handler.ListDonations(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("bad campaign id", func(t *testing.T) {
		handler := NewVerificationHandler(new(MockVerificationService))
		ctx := setupTestContext("GET", "/verification?campaign_id=abc", nil)
		handler.ListDonations(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestVerificationHandler_Verify(t *testing.T) {
	t.Run("successful verification", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("Verify", mock.Anything, int64(7), model.DonationStatusCompleted, int64(42), "looks good", "GC-123").
			Return(&model.Donation{ID: 7, Status: model.DonationStatusCompleted}, nil)

		body, _ := json.Marshal(verifyRequest{Status: "completed", Notes: "looks good", ExternalTxnID: "GC-123"})
		ctx := setupTestContext("POST", "/verification/7", body)
		ctx.Request.Header.Set("X-Staff-ID", "42")
		ctx.SetUserValue("id", "7")
		handler.Verify(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("invalid transition conflicts", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.ErrInvalidTransition)

		body, _ := json.Marshal(verifyRequest{Status: "completed"})
		ctx := setupTestContext("POST", "/verification/7", body)
		ctx.SetUserValue("id", "7")
		handler.Verify(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("undocumented override is rejected", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.ErrOverrideNotesRequired)

		body, _ := json.Marshal(verifyRequest{Status: "completed"})
		ctx := setupTestContext("POST", "/verification/7", body)
		ctx.SetUserValue("id", "7")
		handler.Verify(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "notes")
	})

	t.Run("unverifiable status", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.ErrUnverifiableStatus)

		body, _ := json.Marshal(verifyRequest{Status: "refunded"})
		ctx := setupTestContext("POST", "/verification/7", body)
		ctx.SetUserValue("id", "7")
		handler.Verify(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestVerificationHandler_BulkVerify(t *testing.T) {
	t.Run("per item outcomes", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("BulkVerify", mock.Anything, []int64{1, 2}, model.DonationStatusCompleted, int64(0), "").
			Return([]services.BulkItem{
				{DonationID: 1, OK: true},
				{DonationID: 2, Reason: "invalid_transition"},
			}, nil)

		body, _ := json.Marshal(bulkVerifyRequest{DonationIDs: []int64{1, 2}, Action: "complete"})
		ctx := setupTestContext("POST", "/verification/bulk", body)
		handler.BulkVerify(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "invalid_transition")
	})

	t.Run("status spellings are accepted as actions", func(t *testing.T) {
		cases := map[string]model.DonationStatus{
			"completed": model.DonationStatusCompleted,
			"failed":    model.DonationStatusFailed,
			"disputed":  model.DonationStatusDisputed,
		}
		for action, status := range cases {
			svc := new(MockVerificationService)
			handler := NewVerificationHandler(svc)

			svc.On("BulkVerify", mock.Anything, []int64{1}, status, int64(0), "").
				Return([]services.BulkItem{{DonationID: 1, OK: true}}, nil)

			body, _ := json.Marshal(bulkVerifyRequest{DonationIDs: []int64{1}, Action: action})
			ctx := setupTestContext("POST", "/verification/bulk", body)
			handler.BulkVerify(ctx)

			assert.Equal(t, 200, ctx.Response.StatusCode(), action)
			svc.AssertExpectations(t)
		}
	})

	t.Run("undocumented override is reported per item", func(t *testing.T) {
		svc := new(MockVerificationService)
		handler := NewVerificationHandler(svc)

		svc.On("BulkVerify", mock.Anything, []int64{3}, model.DonationStatusCompleted, int64(0), "").
			Return([]services.BulkItem{{DonationID: 3, Reason: "notes_required"}}, nil)

		body, _ := json.Marshal(bulkVerifyRequest{DonationIDs: []int64{3}, Action: "completed"})
		ctx := setupTestContext("POST", "/verification/bulk", body)
		handler.BulkVerify(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "notes_required")
	})

	t.Run("unknown action", func(t *testing.T) {
		handler := NewVerificationHandler(new(MockVerificationService))
		body, _ := json.Marshal(bulkVerifyRequest{DonationIDs: []int64{1}, Action: "refund"})
		ctx := setupTestContext("POST", "/verification/bulk", body)
		handler.BulkVerify(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("empty ids", func(t *testing.T) {
		handler := NewVerificationHandler(new(MockVerificationService))
		body, _ := json.Marshal(bulkVerifyRequest{Action: "complete"})
		ctx := setupTestContext("POST", "/verification/bulk", body)
		handler.BulkVerify(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestVerificationHandler_ExportCSV(t *testing.T) {
	svc := new(MockVerificationService)
	handler := NewVerificationHandler(svc)

	svc.On("ExportCSV", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx := setupTestContext("GET", "/verification/export.csv?tab=completed", nil)
	handler.ExportCSV(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "text/csv")
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Disposition")), "attachment")
	assert.Contains(t, string(ctx.Response.Body()), "reference_number")
}
