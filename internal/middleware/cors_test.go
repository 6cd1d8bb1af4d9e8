package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantAllowed bool
		wantStatus  int
	}{
		{"extension preflight", []string{DefaultExtensionOrigin}, http.MethodOptions, "chrome-extension://abcdef", true, http.StatusNoContent},
		{"extension get", []string{DefaultExtensionOrigin}, http.MethodGet, "chrome-extension://abcdef", true, http.StatusOK},
		{"web origin rejected", []string{DefaultExtensionOrigin}, http.MethodGet, "https://evil.example", false, http.StatusOK},
		{"exact origin", []string{"http://localhost:3000"}, http.MethodGet, "http://localhost:3000", true, http.StatusOK},
		{"empty list falls back", nil, http.MethodGet, "chrome-extension://xyz", true, http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			handler := CORS(tt.origins, zap.NewNop(), false)(next)

			req := httptest.NewRequest(tt.method, "/api/v1/summary", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			got := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed && got != tt.origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.wantAllowed && got != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
			}
		})
	}
}

func TestNormalizeOrigins(t *testing.T) {
	t.Parallel()

	got := normalizeOrigins([]string{" chrome-extension://* ", "", "chrome-extension://*", "http://localhost:3000"})
	want := []string{"chrome-extension://*", "http://localhost:3000"}
	if len(got) != len(want) {
		t.Fatalf("normalizeOrigins() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normalizeOrigins()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
