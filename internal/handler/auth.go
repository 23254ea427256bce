package handler

import (
	"net/http"

	"floorpulse-backend/internal/server/authctx"
	"github.com/go-chi/chi/v5"
)

// AuthHandler reports who the manager routes were opened for. Tokens are
// minted offline with floorctl token.
type AuthHandler struct {
	// Enabled is false when JWT_SECRET is unset and manager routes are open.
	Enabled bool
}

func (h AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.me)
}

func (h AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	u := authctx.FromContext(r.Context())
	if u == nil {
		if h.Enabled {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"authRequired":  false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"authRequired":  h.Enabled,
		"subject":       u.Subject,
		"role":          u.Role,
	})
}
