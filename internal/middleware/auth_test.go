package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := AuthMiddleware(next)

	tests := []struct {
		name   string
		path   string
		cookie bool
		status int
	}{
		{"login page is public", "/login", false, http.StatusTeapot},
		{"login endpoint is public", "/auth/login", false, http.StatusTeapot},
		{"static files are public", "/static/app.js", false, http.StatusTeapot},
		{"api without cookie", "/api/results", false, http.StatusUnauthorized},
		{"page without cookie", "/", false, http.StatusSeeOther},
		{"api with cookie", "/api/results", true, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: AuthCookie, Value: "true"})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}
