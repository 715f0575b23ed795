package report

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"quitflow/internal/app/apiresp"
	"quitflow/internal/ledger"
)

// historySource yields the answer history for a session id; the app's
// session registry implements it.
type historySource interface {
	ReviewHistory(id string) ([]ledger.Entry, bool)
}

type Handler struct {
	svc     *Service
	history historySource
}

func NewHandler(svc *Service, history historySource) *Handler {
	return &Handler{svc: svc, history: history}
}

// ExportReview streams the session's review table as an xlsx download.
func (h *Handler) ExportReview(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	entries, ok := h.history.ReviewHistory(id)
	if !ok {
		apiresp.WriteError(w, r, http.StatusNotFound, "session not found")
		return
	}

	data, err := h.svc.BuildReviewWorkbook(entries)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "could not build workbook")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "review-"+id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
