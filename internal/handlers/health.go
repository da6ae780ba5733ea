package handlers

import (
	"net/http"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// Health answers liveness checks.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}
