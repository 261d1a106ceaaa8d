package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/repository"
	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type PaymentConfigService interface {
	CreatePaymentConfig(ctx context.Context, p *model.PaymentConfig) (*model.PaymentConfig, error)
	ActivatePaymentConfig(ctx context.Context, id int64) error
}

type PaymentConfigHandler struct {
	svc PaymentConfigService
}

func RegisterPaymentConfigRoutes(e *router.Group, gate *StaffGate, h *PaymentConfigHandler) {
	e.POST("/payment-configs", gate.Protect(h.Create))
	e.POST("/payment-configs/{id}/activate", gate.Protect(h.Activate))
}

func NewPaymentConfigHandler(svc PaymentConfigService) *PaymentConfigHandler {
	return &PaymentConfigHandler{svc: svc}
}

type createPaymentConfigRequest struct {
	Label         string `json:"label"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	QRImagePath   string `json:"qr_image_path"`
	Instructions  string `json:"instructions"`
}

func (h *PaymentConfigHandler) Create(ctx *xhttp.RequestCtx) {
	var req createPaymentConfigRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Label) == "" || strings.TrimSpace(req.AccountNumber) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "label and account_number are required")
		return
	}

	cfg, err := h.svc.CreatePaymentConfig(ctx, &model.PaymentConfig{
		Label:         req.Label,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		QRImagePath:   req.QRImagePath,
		Instructions:  req.Instructions,
	})
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, cfg)
}

func (h *PaymentConfigHandler) Activate(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid config id")
		return
	}

	err = h.svc.ActivatePaymentConfig(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrPaymentConfigNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "payment config not found")
		return
	case errors.Is(err, repository.ErrQRImageRequired):
		writeError(ctx, fasthttp.StatusConflict, "payment config cannot be activated without a QR image")
		return
	default:
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "activated"})
}
