package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"quitflow/internal/app/apiresp"
)

// sessionRegistry is the session lookup the handler works against; the
// app package provides the real registry.
type sessionRegistry interface {
	Create(ctx context.Context) (string, *Session, error)
	Get(id string) (*Session, bool)
	Remove(id string) bool
}

type Handler struct {
	reg sessionRegistry
}

func NewHandler(reg sessionRegistry) *Handler {
	return &Handler{reg: reg}
}

type createSessionResponse struct {
	SessionID string   `json:"session_id"`
	Snapshot  Snapshot `json:"snapshot"`
}

type submitRequest struct {
	Answers []SelectedOption `json:"answers"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, sess, err := h.reg.Create(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "could not create session")
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, createSessionResponse{
		SessionID: id,
		Snapshot:  sess.Snapshot(),
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, sess.Snapshot())
}

func (h *Handler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	h.respondAfterOp(w, r, sess, sess.SubmitAnswers(r.Context(), req.Answers))
}

func (h *Handler) GoBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondAfterOp(w, r, sess, sess.GoBack(r.Context()))
}

func (h *Handler) ResumeFromReview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondAfterOp(w, r, sess, sess.ResumeFromReview(r.Context()))
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	_, err := sess.Complete(r.Context())
	switch {
	case err == nil:
		apiresp.WriteOK(w, r, http.StatusOK, sess.Snapshot())
	case errors.Is(err, ErrBusy):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotReviewing):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	default:
		// The session finished locally despite the upstream failure; the
		// snapshot reflects that and carries the error message.
		apiresp.WriteOK(w, r, http.StatusOK, sess.Snapshot())
	}
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondAfterOp(w, r, sess, sess.Restart(r.Context()))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondAfterOp(w, r, sess, sess.Refresh(r.Context()))
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, AssembleReview(sess.ReviewHistory()))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !h.reg.Remove(id) {
		apiresp.WriteError(w, r, http.StatusNotFound, "session not found")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, nil)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "session id is required")
		return nil, false
	}
	sess, ok := h.reg.Get(id)
	if !ok {
		apiresp.WriteError(w, r, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// respondAfterOp maps controller errors onto statuses. Upstream failures
// leave the session in a coherent, retryable state, so they are reported
// through the snapshot with 502 rather than hiding the machine state.
func (h *Handler) respondAfterOp(w http.ResponseWriter, r *http.Request, sess *Session, err error) {
	switch {
	case err == nil:
		apiresp.WriteOK(w, r, http.StatusOK, sess.Snapshot())
	case errors.Is(err, ErrBusy),
		errors.Is(err, ErrNoActiveQuestion),
		errors.Is(err, ErrCannotGoBack),
		errors.Is(err, ErrNotReviewing),
		errors.Is(err, ErrSessionFinished):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptySelection):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	default:
		apiresp.WriteError(w, r, http.StatusBadGateway, err.Error())
	}
}
