package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quitflow/internal/plan"
	"quitflow/internal/questionnaire"
	"quitflow/internal/report"
)

type fakePlanFetcher struct{}

func (fakePlanFetcher) FetchPlan(ctx context.Context) (*plan.Plan, error) {
	return &plan.Plan{Status: "reduction", Current: 12, Target: 8}, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := Config{RateLimitPerMin: 1000}
	reg := NewSessionRegistry(oneQuestionService(), memoryStores(), questionnaire.Coordinate{}, time.Hour)
	planSvc := plan.NewService(fakePlanFetcher{}, time.Minute)
	return NewRouter(cfg, reg, planSvc, report.NewService(), nil)
}

func TestRouterHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterMetrics(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "quitflow_uptime_seconds") {
		t.Fatalf("missing uptime metric: %s", body)
	}
	if !strings.Contains(body, "quitflow_http_requests_total") {
		t.Fatalf("missing request counter: %s", body)
	}
}

func TestRouterSessionLifecycle(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"phase":"answering"`) {
		t.Fatalf("new session should be answering: %s", w.Body.String())
	}
}

func TestRouterPlanEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"reduction"`) {
		t.Fatalf("unexpected plan body: %s", w.Body.String())
	}
}

func TestRouterRateLimit(t *testing.T) {
	cfg := Config{RateLimitPerMin: 2}
	reg := NewSessionRegistry(oneQuestionService(), memoryStores(), questionnaire.Coordinate{}, time.Hour)
	planSvc := plan.NewService(fakePlanFetcher{}, time.Minute)
	r := NewRouter(cfg, reg, planSvc, report.NewService(), nil)

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the third request, got %d", last)
	}
}
