// AngelaMos | 2026
// handler.go

package export

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basementlabs/memberd/internal/core"
)

type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/members/export", h.Export)
	})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	stamp := time.Now().Format("2006-01-02")

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="members-%s.csv"`, stamp))

		if err := h.exporter.WriteCSV(r.Context(), w); err != nil {
			core.InternalServerError(w, err)
		}

	case "xlsx":
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="members-%s.xlsx"`, stamp))

		if err := h.exporter.WriteXLSX(r.Context(), w); err != nil {
			core.InternalServerError(w, err)
		}

	default:
		core.BadRequest(w, "format must be csv or xlsx")
	}
}
