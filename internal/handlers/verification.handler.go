package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/services"
	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type VerificationService interface {
	List(ctx context.Context, f model.DonationFilter) ([]*model.Donation, int64, error)
	Verify(ctx context.Context, donationID int64, newStatus model.DonationStatus, actorID int64, notes, externalTxnID string) (*model.Donation, error)
	BulkVerify(ctx context.Context, donationIDs []int64, newStatus model.DonationStatus, actorID int64, notes string) ([]services.BulkItem, error)
	ExportCSV(ctx context.Context, w io.Writer, f model.DonationFilter) error
}

type VerificationHandler struct {
	svc VerificationService
}

func RegisterVerificationRoutes(e *router.Group, gate *StaffGate, h *VerificationHandler) {
	e.GET("/verification", gate.Protect(h.ListDonations))
	e.GET("/verification/export.csv", gate.Protect(h.ExportCSV))
	e.POST("/verification/bulk", gate.Protect(h.BulkVerify))
	e.POST("/verification/{id}", gate.Protect(h.Verify))
}

func NewVerificationHandler(svc VerificationService) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

type verifyRequest struct {
	Status        string `json:"status"`
	Notes         string `json:"notes"`
	ExternalTxnID string `json:"external_txn_id"`
}

type bulkVerifyRequest struct {
	DonationIDs []int64 `json:"donation_ids"`
	Action      string  `json:"action"`
	Notes       string  `json:"notes"`
}

type donationListResponse struct {
	Items []*model.Donation `json:"items"`
	Total int64             `json:"total"`
}

// tabStatuses maps workbench tabs onto status filters. The "all" tab (and an
// unknown tab) leaves the filter open.
var tabStatuses = map[string][]model.DonationStatus{
	"pending":   {model.DonationStatusPendingVerification},
	"unpaid":    {model.DonationStatusPendingPayment},
	"completed": {model.DonationStatusCompleted},
	"failed":    {model.DonationStatusFailed},
	"disputed":  {model.DonationStatusDisputed},
	"refunded":  {model.DonationStatusRefunded},
}

// bulkActions maps the bulk endpoint's action onto the target status. Both
// the verb and the status spellings are accepted.
var bulkActions = map[string]model.DonationStatus{
	"complete":  model.DonationStatusCompleted,
	"completed": model.DonationStatusCompleted,
	"fail":      model.DonationStatusFailed,
	"failed":    model.DonationStatusFailed,
	"dispute":   model.DonationStatusDisputed,
	"disputed":  model.DonationStatusDisputed,
}

func donationFilterFromQuery(ctx *xhttp.RequestCtx) (model.DonationFilter, error) {
	f := model.DonationFilter{Desc: true}

	if tab := query(ctx, "tab"); tab != "" {
		f.Statuses = tabStatuses[tab]
	}
	if s := query(ctx, "search"); s != "" {
		f.Search = &s
	}
	if v := query(ctx, "campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("campaign_id is invalid")
		}
		f.CampaignID = &id
	}
	if v := query(ctx, "date_from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return f, errors.New("date_from is invalid")
		}
		f.From = &t
	}
	if v := query(ctx, "date_to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return f, errors.New("date_to is invalid")
		}
		// a bare date means the whole day, inclusive
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			t = t.AddDate(0, 0, 1).Add(-time.Second)
		}
		f.To = &t
	}
	if query(ctx, "sort") == "oldest" {
		f.Desc = false
	}
	if v := query(ctx, "limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}
	return f, nil
}

/* --------------------------------- Routes ----------------------------------- */

func (h *VerificationHandler) ListDonations(ctx *xhttp.RequestCtx) {
	f, err := donationFilterFromQuery(ctx)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []*model.Donation{}
	}
	writeJSON(ctx, fasthttp.StatusOK, donationListResponse{Items: items, Total: total})
}

func (h *VerificationHandler) Verify(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid donation id")
		return
	}
	var req verifyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	donation, err := h.svc.Verify(ctx, id, model.DonationStatus(req.Status), actorID(ctx), req.Notes, req.ExternalTxnID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnverifiableStatus):
		writeError(ctx, fasthttp.StatusBadRequest, "status is not a valid verification outcome")
		return
	case errors.Is(err, services.ErrInvalidTransition):
		writeError(ctx, fasthttp.StatusConflict, "transition not allowed from current status")
		return
	case errors.Is(err, services.ErrOverrideNotesRequired):
		writeError(ctx, fasthttp.StatusBadRequest, "verification notes are required to complete a donation with a pending fraud alert")
		return
	case errors.Is(err, services.ErrDonationNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "donation not found")
		return
	default:
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, donation)
}

func (h *VerificationHandler) BulkVerify(ctx *xhttp.RequestCtx) {
	var req bulkVerifyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.DonationIDs) == 0 {
		writeError(ctx, fasthttp.StatusBadRequest, "donation_ids is required")
		return
	}
	status, ok := bulkActions[req.Action]
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "unknown bulk action")
		return
	}

	items, err := h.svc.BulkVerify(ctx, req.DonationIDs, status, actorID(ctx), req.Notes)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"results": items})
}

func (h *VerificationHandler) ExportCSV(ctx *xhttp.RequestCtx) {
	f, err := donationFilterFromQuery(ctx)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition",
		`attachment; filename="donations_`+time.Now().Format("20060102")+`.csv"`)

	if err := h.svc.ExportCSV(ctx, ctx.Response.BodyWriter(), f); err != nil {
		ctx.Response.ResetBody()
		writeError(ctx, fasthttp.StatusInternalServerError, "export failed")
	}
}
