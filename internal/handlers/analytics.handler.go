package handlers

import (
	"context"
	"strconv"

	"github.com/alumniport/donation-gateway/internal/model"
	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type AnalyticsService interface {
	ReportLastDays(ctx context.Context, days int) (*model.AnalyticsReport, error)
}

type AnalyticsHandler struct {
	svc AnalyticsService
}

func RegisterAnalyticsRoutes(e *router.Group, gate *StaffGate, h *AnalyticsHandler) {
	e.GET("/analytics", gate.Protect(h.GetReport))
}

func NewAnalyticsHandler(svc AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

const maxReportDays = 366

func (h *AnalyticsHandler) GetReport(ctx *xhttp.RequestCtx) {
	days := 0
	if v := query(ctx, "days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxReportDays {
			writeError(ctx, fasthttp.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = n
	}

	report, err := h.svc.ReportLastDays(ctx, days)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, report)
}
