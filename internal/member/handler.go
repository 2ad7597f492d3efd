// AngelaMos | 2026
// handler.go

package member

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/members", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/members", h.ListMembers)
		r.Get("/admin/members/{memberID}", h.GetMember)
		r.Put("/admin/members/{memberID}", h.UpdateMember)
		r.Put("/admin/members/{memberID}/guarantors", h.UpdateGuarantors)
		r.Put("/admin/members/{memberID}/tariff", h.UpdateTariff)
		r.Put("/admin/members/{memberID}/role", h.UpdateRole)
		r.Post("/admin/members/{memberID}/ban", h.Ban)
		r.Post("/admin/members/{memberID}/unban", h.Unban)
		r.Delete("/admin/members/{memberID}", h.DeleteMember)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetMemberID(r.Context())

	m, err := h.service.GetMe(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	memberID := middleware.GetMemberID(r.Context())

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.UpdateMember(r.Context(), memberID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	params := ListMembersParams{
		Page:      parseIntQuery(r, "page", 1),
		PageSize:  parseIntQuery(r, "page_size", 20),
		Search:    r.URL.Query().Get("search"),
		Role:      r.URL.Query().Get("role"),
		Suspended: parseBoolQuery(r, "suspended"),
		Banned:    parseBoolQuery(r, "banned"),
	}

	members, total, err := h.service.ListMembers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToMemberResponseList(members),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	m, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.UpdateMember(r.Context(), memberID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

// UpdateGuarantors replaces both guarantor references. Self-reference and
// duplicate guarantors are rejected before anything is written.
func (h *Handler) UpdateGuarantors(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	var req UpdateGuarantorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.UpdateGuarantors(r.Context(), memberID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) UpdateTariff(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	var req UpdateTariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.UpdateTariff(r.Context(), memberID, req.TariffID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	var req UpdateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	m, err := h.service.UpdateRole(r.Context(), memberID, req.Role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	h.setBan(w, r, true)
}

func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) {
	h.setBan(w, r, false)
}

func (h *Handler) setBan(w http.ResponseWriter, r *http.Request, banned bool) {
	memberID := chi.URLParam(r, "memberID")

	m, err := h.service.SetBan(r.Context(), memberID, banned)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToMemberResponse(m))
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.GetMemberID(r.Context())
	targetID := chi.URLParam(r, "memberID")

	if err := h.service.CanDeleteMember(r.Context(), requesterID, targetID); err != nil {
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "insufficient permissions")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	if err := h.service.DeleteMember(r.Context(), targetID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "member")
	case errors.Is(err, core.ErrInvalidInput):
		core.UnprocessableEntity(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

func parseBoolQuery(r *http.Request, key string) *bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}

	return &parsed
}
