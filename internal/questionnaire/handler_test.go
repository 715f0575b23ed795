package questionnaire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"quitflow/internal/ledger"
)

type stubRegistry struct {
	createFn func(ctx context.Context) (string, *Session, error)
	getFn    func(id string) (*Session, bool)
	removeFn func(id string) bool
}

func (s *stubRegistry) Create(ctx context.Context) (string, *Session, error) {
	return s.createFn(ctx)
}

func (s *stubRegistry) Get(id string) (*Session, bool) {
	return s.getFn(id)
}

func (s *stubRegistry) Remove(id string) bool {
	if s.removeFn == nil {
		return false
	}
	return s.removeFn(id)
}

func sessionRouter(reg sessionRegistry) http.Handler {
	h := NewHandler(reg)
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{id}", func(one chi.Router) {
		one.Get("/", h.GetSession)
		one.Delete("/", h.DeleteSession)
		one.Post("/answers", h.SubmitAnswers)
		one.Post("/back", h.GoBack)
		one.Post("/resume", h.ResumeFromReview)
		one.Post("/complete", h.Complete)
		one.Post("/restart", h.Restart)
		one.Post("/refresh", h.Refresh)
		one.Get("/review", h.Review)
	})
	return r
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	return env
}

func startedSession(t *testing.T, svc Service) *Session {
	t.Helper()
	sess := NewSession(svc, ledger.NewMemoryStore(), Coordinate{})
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return sess
}

func TestCreateSessionHandler(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{questions: map[Coordinate]*Question{q1.Coordinate: q1}}
	reg := &stubRegistry{
		createFn: func(ctx context.Context) (string, *Session, error) {
			sess := NewSession(svc, ledger.NewMemoryStore(), Coordinate{})
			_ = sess.Start(ctx)
			return "sess-1", sess, nil
		},
	}

	w := httptest.NewRecorder()
	sessionRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if !env.OK {
		t.Fatalf("expected ok envelope: %s", w.Body.String())
	}
	var data createSessionResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.SessionID != "sess-1" {
		t.Fatalf("unexpected session id: %q", data.SessionID)
	}
	if data.Snapshot.Phase != PhaseAnswering {
		t.Fatalf("unexpected phase: %s", data.Snapshot.Phase)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return nil, false }}

	w := httptest.NewRecorder()
	sessionRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/missing/", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.OK || env.Error == nil || env.Error.Code != "not_found" {
		t.Fatalf("unexpected envelope: %s", w.Body.String())
	}
}

func TestSubmitAnswersHandler(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{questions: map[Coordinate]*Question{q1.Coordinate: q1}}
	sess := startedSession(t, svc)
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return sess, id == "sess-1" }}

	body, _ := json.Marshal(submitRequest{Answers: pick(q1, 0)})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/answers", bytes.NewReader(body))
	sessionRouter(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	var snap Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Phase != PhaseReviewing {
		t.Fatalf("terminal answer should reach review, got %s", snap.Phase)
	}
}

func TestSubmitAnswersRejectsBadJSON(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{questions: map[Coordinate]*Question{q1.Coordinate: q1}}
	sess := startedSession(t, svc)
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return sess, true }}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/answers", bytes.NewReader([]byte("{")))
	sessionRouter(reg).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitAnswersEmptySelection(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{questions: map[Coordinate]*Question{q1.Coordinate: q1}}
	sess := startedSession(t, svc)
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return sess, true }}

	body, _ := json.Marshal(submitRequest{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/answers", bytes.NewReader(body))
	sessionRouter(reg).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != "invalid_request" {
		t.Fatalf("unexpected envelope: %s", w.Body.String())
	}
}

func TestGoBackConflictWhenNotPossible(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{questions: map[Coordinate]*Question{q1.Coordinate: q1}}
	sess := startedSession(t, svc)
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return sess, true }}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/back", nil)
	sessionRouter(reg).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestReviewHandler(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{questions: map[Coordinate]*Question{q1.Coordinate: q1}}
	sess := startedSession(t, svc)
	if err := sess.SubmitAnswers(context.Background(), pick(q1, 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return sess, true }}

	w := httptest.NewRecorder()
	sessionRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/sess-1/review", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	var rows []DisplayRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].QuestionID != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDeleteSessionHandler(t *testing.T) {
	removed := ""
	reg := &stubRegistry{
		getFn:    func(id string) (*Session, bool) { return nil, false },
		removeFn: func(id string) bool { removed = id; return true },
	}

	w := httptest.NewRecorder()
	sessionRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/sess-1/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if removed != "sess-1" {
		t.Fatalf("expected removal of sess-1, got %q", removed)
	}
}

func TestCompleteHandlerFinishesDespiteUpstreamError(t *testing.T) {
	q1 := choiceQuestion(1, 0, 0, -1)
	svc := &scriptedService{
		questions:   map[Coordinate]*Question{q1.Coordinate: q1},
		completeErr: errors.New("backend rejected completion"),
	}
	sess := startedSession(t, svc)
	if err := sess.SubmitAnswers(context.Background(), pick(q1, 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	reg := &stubRegistry{getFn: func(id string) (*Session, bool) { return sess, true }}

	w := httptest.NewRecorder()
	sessionRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/sess-1/complete", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("local finish should answer 200, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	var snap Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Phase != PhaseDone {
		t.Fatalf("expected done, got %s", snap.Phase)
	}
	if snap.Error == "" {
		t.Fatalf("snapshot should carry the completion error")
	}
}
