package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/models"
)

// CreateImageRequest is the body of POST /v1/images
type CreateImageRequest struct {
	Prompt string         `json:"prompt"`
	Style  models.StyleID `json:"style"`
}

// CreateImageResponse is returned on success
type CreateImageResponse struct {
	Image string `json:"image"`
	Model string `json:"model,omitempty"`
}

// CreateImage handles POST /v1/images. It blocks until the provider answers
// and returns the image as a data URI.
func (h *Handler) CreateImage(w http.ResponseWriter, r *http.Request) {
	var req CreateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	genReq := models.GenerationRequest{Prompt: req.Prompt, Style: req.Style}
	if err := genReq.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.generator.GenerateImage(context.WithoutCancel(r.Context()), req.Prompt, req.Style)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	if res == nil {
		writeJSONError(w, http.StatusBadGateway, "No images were generated.")
		return
	}

	writeJSON(w, http.StatusOK, CreateImageResponse{Image: res.DataURI, Model: res.Model})
}

func statusForError(err error) int {
	var genErr *models.GenerationError
	if !errors.As(err, &genErr) {
		log.Error().Err(err).Msg("Unexpected error type from image generator")
		return http.StatusInternalServerError
	}
	switch genErr.Kind {
	case models.ErrorKindValidation:
		return http.StatusBadRequest
	case models.ErrorKindEmptyResult, models.ErrorKindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
