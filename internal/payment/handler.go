// AngelaMos | 2026
// handler.go

package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/event"
)

const dateLayout = "2006-01-02"

type Handler struct {
	repo      Repository
	bus       *event.Bus
	cfg       config.BillingConfig
	validator *validator.Validate
}

func NewHandler(repo Repository, bus *event.Bus, cfg config.BillingConfig) *Handler {
	return &Handler{
		repo:      repo,
		bus:       bus,
		cfg:       cfg,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/billing", h.BillingConfirmation)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/members/{memberID}/payments", h.ListForMember)
	})
}

type ConfirmationRequest struct {
	MemberID  string `json:"member_id"  validate:"required,uuid"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date"   validate:"required"`
	PaidAt    string `json:"paid_at"`
}

type PaymentResponse struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	PaidAt    time.Time `json:"paid_at"`
}

// BillingConfirmation records a paid interval reported by the external
// payment gateway. This is the only code path that writes to the ledger.
func (h *Handler) BillingConfirmation(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		core.Unauthorized(w, "invalid webhook signature")
		return
	}

	var req ConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		core.BadRequest(w, "start_date must be formatted YYYY-MM-DD")
		return
	}

	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		core.BadRequest(w, "end_date must be formatted YYYY-MM-DD")
		return
	}

	if end.Before(start) {
		core.BadRequest(w, "end_date must not be before start_date")
		return
	}

	paidAt := time.Now()
	if req.PaidAt != "" {
		parsed, parseErr := time.Parse(time.RFC3339, req.PaidAt)
		if parseErr != nil {
			core.BadRequest(w, "paid_at must be RFC 3339")
			return
		}
		paidAt = parsed
	}

	p := &Payment{
		ID:        uuid.New().String(),
		MemberID:  req.MemberID,
		StartDate: start,
		EndDate:   end,
		PaidAt:    paidAt,
	}

	if err := h.repo.Append(r.Context(), p); err != nil {
		core.InternalServerError(w, err)
		return
	}

	h.bus.Publish(context.WithoutCancel(r.Context()), event.Event{
		Type:     event.PaymentRecorded,
		MemberID: p.MemberID,
		Payload:  p,
	})

	core.Created(w, toResponse(p))
}

func (h *Handler) ListForMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	payments, err := h.repo.ListForMember(r.Context(), memberID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	responses := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		responses = append(responses, toResponse(&p))
	}

	core.OK(w, responses)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.cfg.WebhookSecret == "" {
		return true
	}

	got := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare(
		[]byte(got),
		[]byte(h.cfg.WebhookSecret),
	) == 1
}

func toResponse(p *Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		MemberID:  p.MemberID,
		StartDate: p.StartDate.Format(dateLayout),
		EndDate:   p.EndDate.Format(dateLayout),
		PaidAt:    p.PaidAt,
	}
}
