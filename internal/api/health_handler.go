package api

import (
	"net/http"

	"doctext/internal/api/shared"
)

// HealthResponse represents the response body for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck handles GET /health requests.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "healthy"})
}
