package handlers

import (
	"log/slog"
	"net/http"
	"strings"
)

// HandleSession sets the bearer token sent with backend requests from the "token" form field on POST, and
// clears it on DELETE.
func (m Main) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		token := strings.TrimSpace(r.FormValue("token"))
		if token == "" {
			http.Error(w, "Token is required", http.StatusBadRequest)
			return
		}
		m.session.Set(token)
		m.logger.Info("Signed in")
	case http.MethodDelete:
		m.session.Clear()
		m.logger.Info("Signed out")
	default:
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth reports the backend health. A backend that cannot be reached is reported with 502.
func (m Main) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := m.backend.Health(r.Context())
	if err != nil {
		m.logger.Warn("Backend health check failed", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, m.logger, health)
}
