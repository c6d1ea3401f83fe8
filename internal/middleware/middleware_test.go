package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "keeps sane id", inbound: "abc-123", keep: true},
		{name: "mints when missing", inbound: ""},
		{name: "mints when too long", inbound: strings.Repeat("a", 80)},
		{name: "mints on control chars", inbound: "bad\tid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.inbound != "" {
				req.Header.Set("X-Request-ID", tc.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if seen == "" || rec.Header().Get("X-Request-ID") != seen {
				t.Fatalf("request id mismatch: ctx=%q header=%q", seen, rec.Header().Get("X-Request-ID"))
			}
			if tc.keep != (seen == tc.inbound) {
				t.Fatalf("request id %q, inbound %q, keep=%v", seen, tc.inbound, tc.keep)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	tests := []struct {
		name    string
		allowed []string
		origin  string
		method  string
		want    string
		status  int
	}{
		{name: "listed origin", allowed: []string{"https://a.example"}, origin: "https://a.example", method: http.MethodGet, want: "https://a.example", status: http.StatusOK},
		{name: "unlisted origin", allowed: []string{"https://a.example"}, origin: "https://b.example", method: http.MethodGet, want: "", status: http.StatusOK},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://b.example", method: http.MethodGet, want: "*", status: http.StatusOK},
		{name: "preflight", allowed: []string{"*"}, origin: "https://b.example", method: http.MethodOptions, want: "*", status: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Fatalf("allow origin mismatch: got %q want %q", got, tc.want)
			}
			if rec.Code != tc.status {
				t.Fatalf("status mismatch: got %d want %d", rec.Code, tc.status)
			}
		})
	}
}
