// AngelaMos | 2026
// handler.go

package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basementlabs/memberd/internal/core"
	"github.com/basementlabs/memberd/internal/member"
)

const dateLayout = "2006-01-02"

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/admin/members/{memberID}/suspend", h.Suspend)
		r.Post("/admin/members/{memberID}/unsuspend", h.Unsuspend)
		r.Get("/admin/members/{memberID}/expected-amount", h.ExpectedAmount)
		r.Get("/admin/members/{memberID}/access", h.Access)

		r.Route("/admin/reports", func(r chi.Router) {
			r.Get("/cohorts/active", h.ActiveCohort)
			r.Get("/cohorts/with-debt", h.WithDebtCohort)
			r.Get("/cohorts/suspended-today", h.SuspendedTodayCohort)
			r.Get("/paid-within", h.PaidWithin)
			r.Get("/paid-graph", h.PaidGraph)
		})
	})
}

func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, h.engine.Suspend)
}

func (h *Handler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, h.engine.Unsuspend)
}

func (h *Handler) setSuspended(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, memberID string) (*member.Member, error),
) {
	memberID := chi.URLParam(r, "memberID")

	m, err := op(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, member.ToMemberResponse(m))
}

// ExpectedAmount returns the next payment the member owes, in cents.
func (h *Handler) ExpectedAmount(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	m, err := h.engine.members.GetByID(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	amount, err := h.engine.ExpectedPaymentAmount(r.Context(), m)
	if err != nil {
		if errors.Is(err, ErrNoPayments) {
			core.UnprocessableEntity(w, "member has no payment history")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]any{
		"member_id":    memberID,
		"amount_cents": amount,
	})
}

func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	m, err := h.engine.members.GetByID(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "member")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	allowed, err := h.engine.AccessAllowed(r.Context(), m)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]any{
		"member_id":      memberID,
		"access_allowed": allowed,
	})
}

func (h *Handler) ActiveCohort(w http.ResponseWriter, r *http.Request) {
	members, err := h.engine.Active(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, member.ToMemberResponseList(members))
}

func (h *Handler) WithDebtCohort(w http.ResponseWriter, r *http.Request) {
	members, err := h.engine.WithDebt(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, member.ToMemberResponseList(members))
}

func (h *Handler) SuspendedTodayCohort(w http.ResponseWriter, r *http.Request) {
	members, err := h.engine.SuspendedToday(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, member.ToMemberResponseList(members))
}

func (h *Handler) PaidWithin(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	ids, err := h.engine.PaidWithinPeriod(r.Context(), start, end)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]any{
		"start":      start.Format(dateLayout),
		"end":        end.Format(dateLayout),
		"member_ids": ids,
		"count":      len(ids),
	})
}

func (h *Handler) PaidGraph(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	points, err := h.engine.PaidUsersGraph(r.Context(), start, end)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, points)
}

func parsePeriod(
	w http.ResponseWriter,
	r *http.Request,
) (time.Time, time.Time, bool) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		core.BadRequest(w, "start must be a YYYY-MM-DD date")
		return time.Time{}, time.Time{}, false
	}

	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		core.BadRequest(w, "end must be a YYYY-MM-DD date")
		return time.Time{}, time.Time{}, false
	}

	if !start.Before(end) {
		core.BadRequest(w, "start must precede end")
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}
