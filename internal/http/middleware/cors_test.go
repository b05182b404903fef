package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{"listed origin", []string{"https://spa.example"}, http.MethodGet, "https://spa.example", false, "https://spa.example", http.StatusOK, true},
		{"trailing slash in config", []string{"https://spa.example/"}, http.MethodGet, "https://spa.example", false, "https://spa.example", http.StatusOK, true},
		{"unknown origin", []string{"https://spa.example"}, http.MethodGet, "https://evil.example", false, "", http.StatusOK, true},
		{"wildcard", []string{"*"}, http.MethodGet, "https://random.example", false, "https://random.example", http.StatusOK, true},
		{"no origin", []string{"*"}, http.MethodGet, "", false, "", http.StatusOK, true},
		{"preflight", []string{"https://spa.example"}, http.MethodOptions, "https://spa.example", true, "https://spa.example", http.StatusNoContent, false},
		{"preflight from unknown origin passes through", []string{"https://spa.example"}, http.MethodOptions, "https://evil.example", true, "", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/appointments/availability", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantHandler, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
			}
		})
	}
}
