package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	return NewRouter(testClassifier(t))
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	r := testRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Code != "not_found" || env.Meta.Path != "/missing" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := testRouter(t)
	r.Handle(RouteClassInternalAPI, http.MethodGet, "/config/scorecard/versions", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/config/scorecard/versions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRouterPatternRoute(t *testing.T) {
	r := testRouter(t)
	var gotPath string
	r.Handle(RouteClassInternalAPI, http.MethodGet, "/config/{domain}/versions/{version_id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/scorecard/versions/v-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotPath != "/config/scorecard/versions/v-1" {
		t.Fatalf("handler path = %q", gotPath)
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	r := testRouter(t)
	r.Handle(RouteClassInternalAPI, http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Code != "internal_error" {
		t.Fatalf("code = %q", env.Code)
	}
}
