package plan

import (
	"net/http"

	"quitflow/internal/app/apiresp"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetPlan serves the cached quit plan; ?refresh=1 bypasses the cache.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"
	p, err := h.svc.Get(r.Context(), force)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadGateway, "could not load plan")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, p)
}
