package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/models"
	"github.com/sole-vault/shoe-studio/internal/services"
)

// StudioService is the subset of *services.Studio used by the handlers.
type StudioService interface {
	Generate(ctx context.Context, sessionID, prompt string, styleID models.StyleID) (models.State, error)
	State(sessionID string) models.State
	Result(sessionID string) (*models.GenerationResult, bool)
	Subscribe(sessionID string) (<-chan models.State, func())
}

// Handler contains all HTTP handlers
type Handler struct {
	studio    StudioService
	generator services.ImageGenerator
}

// NewHandler creates a new handler
func NewHandler(studio StudioService, generator services.ImageGenerator) *Handler {
	return &Handler{
		studio:    studio,
		generator: generator,
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
