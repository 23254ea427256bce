package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/handler"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

func TestManagerGuard(t *testing.T) {
	auth := service.AuthService{Secret: "test-secret", TTL: time.Hour}
	r := chi.NewRouter()
	r.Group(func(mr chi.Router) {
		mr.Use(AuthMiddleware(auth))
		mr.Use(RequireRole(domain.RoleAdmin, domain.RoleManager))
		handler.AuthHandler{Enabled: true}.RegisterProtectedRoutes(mr)
	})

	token, _, err := auth.Issue("line-lead", domain.RoleManager)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other := service.AuthService{Secret: "another-secret", TTL: time.Hour}
	forged, _, err := other.Issue("line-lead", domain.RoleManager)
	if err != nil {
		t.Fatalf("issue forged: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK && !strings.Contains(rec.Body.String(), `"subject":"line-lead"`) {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestRequireRoleWithoutUser(t *testing.T) {
	h := RequireRole(domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}
