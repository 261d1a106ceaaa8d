package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/services"
	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type FraudService interface {
	ListByStatus(ctx context.Context, status model.FraudAlertStatus, limit, offset int) ([]*model.FraudAlert, int64, error)
	ListByDonation(ctx context.Context, donationID int64) ([]*model.FraudAlert, error)
	RiskScore(ctx context.Context, donationID int64) (int, error)
	Review(ctx context.Context, alertID int64, status model.FraudAlertStatus, reviewerID int64, notes string) (*model.FraudAlert, error)
	AddBlacklistEntry(ctx context.Context, e *model.BlacklistEntry) (*model.BlacklistEntry, error)
	RemoveBlacklistEntry(ctx context.Context, id int64) error
}

type FraudHandler struct {
	svc FraudService
}

func RegisterFraudRoutes(e *router.Group, gate *StaffGate, h *FraudHandler) {
	e.GET("/fraud/alerts", gate.Protect(h.ListAlerts))
	e.POST("/fraud/alerts/{id}", gate.Protect(h.ReviewAlert))
	e.GET("/fraud/donations/{id}/alerts", gate.Protect(h.DonationAlerts))
	e.POST("/fraud/blacklist", gate.Protect(h.AddBlacklistEntry))
	e.DELETE("/fraud/blacklist/{id}", gate.Protect(h.RemoveBlacklistEntry))
}

func NewFraudHandler(svc FraudService) *FraudHandler {
	return &FraudHandler{svc: svc}
}

type reviewAlertRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type blacklistRequest struct {
	Kind      string     `json:"kind"`
	Value     string     `json:"value"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type alertListResponse struct {
	Items []*model.FraudAlert `json:"items"`
	Total int64               `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *FraudHandler) ListAlerts(ctx *xhttp.RequestCtx) {
	status := model.FraudAlertStatusPending
	if v := query(ctx, "status"); v != "" {
		status = model.FraudAlertStatus(v)
		if !status.Valid() {
			writeError(ctx, fasthttp.StatusBadRequest, "unknown alert status")
			return
		}
	}

	limit := 50
	if v := query(ctx, "limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := query(ctx, "offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, total, err := h.svc.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []*model.FraudAlert{}
	}
	writeJSON(ctx, fasthttp.StatusOK, alertListResponse{Items: items, Total: total})
}

func (h *FraudHandler) DonationAlerts(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid donation id")
		return
	}
	alerts, err := h.svc.ListByDonation(ctx, id)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	score, err := h.svc.RiskScore(ctx, id)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	if alerts == nil {
		alerts = []*model.FraudAlert{}
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"items":      alerts,
		"risk_score": score,
	})
}

func (h *FraudHandler) ReviewAlert(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid alert id")
		return
	}
	var req reviewAlertRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.svc.Review(ctx, id, model.FraudAlertStatus(req.Status), actorID(ctx), req.Notes)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidReviewStatus):
		writeError(ctx, fasthttp.StatusBadRequest, "invalid review status")
		return
	case errors.Is(err, services.ErrFraudAlertNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "fraud alert not found")
		return
	default:
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, alert)
}

func (h *FraudHandler) AddBlacklistEntry(ctx *xhttp.RequestCtx) {
	var req blacklistRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.svc.AddBlacklistEntry(ctx, &model.BlacklistEntry{
		Kind:      model.BlacklistKind(req.Kind),
		Value:     req.Value,
		Reason:    req.Reason,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
		CreatedBy: actorID(ctx),
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrBlacklistDuplicate):
		writeError(ctx, fasthttp.StatusConflict, "blacklist entry already exists")
		return
	default:
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, entry)
}

func (h *FraudHandler) RemoveBlacklistEntry(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid entry id")
		return
	}
	if err := h.svc.RemoveBlacklistEntry(ctx, id); err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	ctx.Response.SetStatusCode(fasthttp.StatusNoContent)
}
