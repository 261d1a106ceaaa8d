package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/internal/services"
	"github.com/alumniport/donation-gateway/internal/uploads"
	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

type DonationService interface {
	Create(ctx context.Context, p model.DonationCreateRequest) (*model.Donation, error)
	Get(ctx context.Context, id int64) (*model.Donation, error)
	AttachProof(ctx context.Context, donationID int64, referenceNumber string, proof services.ProofAttachment, meta model.RequestMeta) (*model.Donation, error)
}

type CampaignService interface {
	GetBySlug(ctx context.Context, slug string) (*model.Campaign, error)
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	ResolveActive(ctx context.Context, c *model.Campaign) (*model.PaymentConfig, error)
}

type ProofStore interface {
	Save(reference, filename string, data []byte) (*uploads.Stored, error)
}

type DonationHandler struct {
	svc       DonationService
	campaigns CampaignService
	proofs    ProofStore
	cookie    *DonorCookie
	maxProof  int64
}

func RegisterDonationRoutes(e *router.Group, h *DonationHandler) {
	e.GET("/campaigns/{slug}", h.GetCampaign)
	e.POST("/campaigns/{slug}/donate", h.CreateDonation)
	e.GET("/donations/{id}/pay", h.GetPaymentInstructions)
	e.POST("/donations/{id}/proof", h.AttachProof)
}

func NewDonationHandler(svc DonationService, campaigns CampaignService, proofs ProofStore, cookie *DonorCookie, maxProofBytes int64) *DonationHandler {
	return &DonationHandler{
		svc:       svc,
		campaigns: campaigns,
		proofs:    proofs,
		cookie:    cookie,
		maxProof:  maxProofBytes,
	}
}

type createDonationRequest struct {
	DonorUserID *int64 `json:"donor_user_id"`
	DonorName   string `json:"donor_name"`
	DonorEmail  string `json:"donor_email"`
	Amount      string `json:"amount"`
	IsAnonymous bool   `json:"is_anonymous"`
	Message     string `json:"message"`
}

type createDonationResponse struct {
	DonationID      int64  `json:"donation_id"`
	ReferenceNumber string `json:"reference_number"`
	PayURL          string `json:"pay_url"`
}

type campaignResponse struct {
	Campaign           *model.Campaign `json:"campaign"`
	AcceptingDonations bool            `json:"accepting_donations"`
}

type paymentInstructionsResponse struct {
	ReferenceNumber string               `json:"reference_number"`
	Amount          string               `json:"amount"`
	Status          model.DonationStatus `json:"status"`
	Payment         *model.PaymentConfig `json:"payment"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *DonationHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	campaign, err := h.campaigns.GetBySlug(ctx, pathString(ctx, "slug"))
	if errors.Is(err, services.ErrCampaignNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, "campaign not found")
		return
	}
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}

	accepting := campaign.AcceptsDonations()
	if accepting {
		cfg, err := h.campaigns.ResolveActive(ctx, campaign)
		if err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
			return
		}
		accepting = cfg != nil
	}
	writeJSON(ctx, fasthttp.StatusOK, campaignResponse{
		Campaign:           campaign,
		AcceptingDonations: accepting,
	})
}

func (h *DonationHandler) CreateDonation(ctx *xhttp.RequestCtx) {
	var req createDonationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "amount is invalid")
		return
	}

	// a valid donor cookie pre-fills the email for returning donors
	email := strings.TrimSpace(req.DonorEmail)
	if email == "" {
		email = h.cookie.Read(ctx)
	}

	donation, err := h.svc.Create(ctx, model.DonationCreateRequest{
		CampaignSlug: pathString(ctx, "slug"),
		DonorUserID:  req.DonorUserID,
		DonorName:    req.DonorName,
		DonorEmail:   email,
		Amount:       amount,
		IsAnonymous:  req.IsAnonymous,
		Message:      req.Message,
		ClientIP:     clientIP(ctx),
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrCampaignNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "campaign not found")
		return
	case errors.Is(err, services.ErrDonationsClosed):
		writeError(ctx, fasthttp.StatusConflict, "campaign is not accepting donations")
		return
	case errors.Is(err, services.ErrPaymentUnavailable):
		writeError(ctx, fasthttp.StatusServiceUnavailable, "payments are temporarily unavailable")
		return
	case errors.Is(err, services.ErrReferenceExhausted):
		writeError(ctx, fasthttp.StatusInternalServerError, "could not allocate a reference number")
		return
	default:
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	h.cookie.Issue(ctx, donation.DonorEmail)
	writeJSON(ctx, fasthttp.StatusCreated, createDonationResponse{
		DonationID:      donation.ID,
		ReferenceNumber: donation.ReferenceNumber,
		PayURL:          fmt.Sprintf("/api/v1/donations/%d/pay", donation.ID),
	})
}

func (h *DonationHandler) GetPaymentInstructions(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid donation id")
		return
	}

	donation, err := h.svc.Get(ctx, id)
	if errors.Is(err, services.ErrDonationNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, "donation not found")
		return
	}
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	if donation.Status != model.DonationStatusPendingPayment {
		writeError(ctx, fasthttp.StatusConflict, "donation is not awaiting payment")
		return
	}

	campaign, err := h.campaigns.GetByID(ctx, donation.CampaignID)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	cfg, err := h.campaigns.ResolveActive(ctx, campaign)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	if cfg == nil {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "payments are temporarily unavailable")
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, paymentInstructionsResponse{
		ReferenceNumber: donation.ReferenceNumber,
		Amount:          donation.Amount.StringFixed(2),
		Status:          donation.Status,
		Payment:         cfg,
	})
}

func (h *DonationHandler) AttachProof(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid donation id")
		return
	}

	reference := strings.TrimSpace(string(ctx.FormValue("reference_number")))
	if reference == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "reference_number is required")
		return
	}

	// validate the donation before touching disk so a rejected request never
	// leaves an orphaned file under the proofs root
	donation, err := h.svc.Get(ctx, id)
	if errors.Is(err, services.ErrDonationNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, "donation not found")
		return
	}
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}
	if donation.ReferenceNumber != reference {
		writeError(ctx, fasthttp.StatusBadRequest, "reference number does not match")
		return
	}
	if donation.Status != model.DonationStatusPendingPayment {
		writeError(ctx, fasthttp.StatusConflict, "donation is not awaiting payment proof")
		return
	}

	header, err := ctx.FormFile("proof")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "proof file is required")
		return
	}
	if h.maxProof > 0 && header.Size > h.maxProof {
		writeError(ctx, fasthttp.StatusRequestEntityTooLarge, "proof file is too large")
		return
	}
	file, err := header.Open()
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "proof file is unreadable")
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "proof file is unreadable")
		return
	}

	stored, err := h.proofs.Save(reference, header.Filename, data)
	if err != nil {
		var reject *uploads.RejectError
		if errors.As(err, &reject) {
			writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
				"error":  "attachment rejected",
				"reason": reject.Reason,
			})
			return
		}
		writeError(ctx, fasthttp.StatusInternalServerError, "could not store proof")
		return
	}

	donation, err = h.svc.AttachProof(ctx, id, reference,
		services.ProofAttachment{Path: stored.Path, MD5: stored.MD5},
		model.RequestMeta{ClientIP: clientIP(ctx), UserAgent: string(ctx.UserAgent())},
	)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrDonationNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "donation not found")
		return
	case errors.Is(err, services.ErrReferenceMismatch):
		writeError(ctx, fasthttp.StatusBadRequest, "reference number does not match")
		return
	case errors.Is(err, services.ErrProofNotExpected):
		writeError(ctx, fasthttp.StatusConflict, "donation is not awaiting payment proof")
		return
	default:
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"donation_id": donation.ID,
		"status":      donation.Status,
	})
}
