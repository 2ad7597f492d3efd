// AngelaMos | 2026
// handler.go

package tariff

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/basementlabs/memberd/internal/core"
)

type Handler struct {
	repo      Repository
	validator *validator.Validate
}

func NewHandler(repo Repository) *Handler {
	return &Handler{
		repo:      repo,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/tariffs", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{tariffID}", h.Update)
	})
}

type TariffRequest struct {
	Name          string `json:"name"           validate:"required,min=1,max=100"`
	MonthlyCents  int64  `json:"monthly_cents"  validate:"gte=0"`
	AccessAllowed bool   `json:"access_allowed"`
}

type TariffResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MonthlyCents  int64     `json:"monthly_cents"`
	AccessAllowed bool      `json:"access_allowed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tariffs, err := h.repo.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	responses := make([]TariffResponse, 0, len(tariffs))
	for _, t := range tariffs {
		responses = append(responses, toResponse(&t))
	}

	core.OK(w, responses)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req TariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	t := &Tariff{
		ID:            uuid.New().String(),
		Name:          req.Name,
		MonthlyCents:  req.MonthlyCents,
		AccessAllowed: req.AccessAllowed,
	}

	if err := h.repo.Create(r.Context(), t); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, toResponse(t))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tariffID := chi.URLParam(r, "tariffID")

	var req TariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	t, err := h.repo.GetByID(r.Context(), tariffID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "tariff")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	t.Name = req.Name
	t.MonthlyCents = req.MonthlyCents
	t.AccessAllowed = req.AccessAllowed

	if err := h.repo.Update(r.Context(), t); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toResponse(t))
}

func toResponse(t *Tariff) TariffResponse {
	return TariffResponse{
		ID:            t.ID,
		Name:          t.Name,
		MonthlyCents:  t.MonthlyCents,
		AccessAllowed: t.AccessAllowed,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
