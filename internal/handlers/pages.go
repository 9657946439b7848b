package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/models"
	"github.com/sole-vault/shoe-studio/internal/services"
	"github.com/sole-vault/shoe-studio/internal/session"
	"github.com/sole-vault/shoe-studio/internal/style"
)

const (
	defaultPrompt    = "A stylish pair of futuristic Adidas sneakers, studio lighting"
	downloadFilename = "generated-shoe-image.png"
)

var examplePrompts = []string{
	"Sleek, minimalist white sneakers, gold stripe",
	"High-top basketball shoes with a galaxy print and glowing soles",
	"Elegant women's high heel made of translucent, iridescent material",
	"Rugged brown leather hiking boots, worn and weathered",
}

// indexPage is the data for the "index" template.
type indexPage struct {
	State    models.State
	Prompt   string
	Loading  bool
	ImageSrc template.URL
	Styles   []style.Option
	Examples []string
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sessionID, err := session.GetID(r.Context())
	if err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	st := h.studio.State(sessionID)
	page := indexPage{
		State:    st,
		Prompt:   st.Prompt,
		Loading:  st.Busy(),
		Styles:   style.All(),
		Examples: examplePrompts,
	}
	if page.Prompt == "" && st.Phase == models.PhaseIdle && st.Notice == "" {
		page.Prompt = defaultPrompt
	}
	if st.Phase == models.PhaseSuccess && st.Result != nil {
		// Data URIs are produced by the generator, never by user input.
		page.ImageSrc = template.URL(st.Result.DataURI)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := executeTemplate(w, "index", page); err != nil {
		log.Error().Err(err).Msg("Failed to render index page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// Generate handles POST /generate from the page form.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	sessionID, err := session.GetID(r.Context())
	if err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	_, err = h.studio.Generate(r.Context(), sessionID, r.PostFormValue("prompt"), models.StyleID(r.PostFormValue("style")))
	switch {
	case err == nil:
	case errors.Is(err, models.ErrValidation):
		log.Debug().Str("session_id", sessionID).Msg("Rejected blank prompt")
	case errors.Is(err, services.ErrInFlight):
		log.Debug().Str("session_id", sessionID).Msg("Generation already in flight")
	default:
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to start generation")
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// State handles GET /state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sessionID, err := session.GetID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "session required")
		return
	}
	writeJSON(w, http.StatusOK, h.studio.State(sessionID))
}

// Download handles GET /download and sends the current image as a PNG attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sessionID, err := session.GetID(r.Context())
	if err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	res, ok := h.studio.Result(sessionID)
	if !ok || len(res.Data) == 0 {
		http.Error(w, "no image to download", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Download write failed")
	}
}
