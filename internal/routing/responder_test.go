package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTraceIDFromRequest(t *testing.T) {
	cases := []struct {
		name        string
		traceparent string
		want        string
	}{
		{"valid", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", "4bf92f3577b34da6a3ce929d0e0e4736"},
		{"uppercase normalized", "00-4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7-01", "4bf92f3577b34da6a3ce929d0e0e4736"},
		{"missing header", "", ""},
		{"wrong part count", "00-abc-01", ""},
		{"all zero", "00-00000000000000000000000000000000-00f067aa0ba902b7-01", ""},
		{"non hex", "00-zzf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/config/scorecard/versions", nil)
			if tc.traceparent != "" {
				req.Header.Set("traceparent", tc.traceparent)
			}
			if got := TraceIDFromRequest(req); got != tc.want {
				t.Fatalf("TraceIDFromRequest = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWriteErrorAlwaysJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/whatever", nil), RouteClassOps, http.StatusConflict, "conflict", "conflict")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}
