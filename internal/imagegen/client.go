package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/models"
	"github.com/sole-vault/shoe-studio/internal/style"
)

const (
	BackendImagen = "imagen"
	BackendGemini = "gemini"

	DefaultImagenModel = "imagen-4.0-generate-001"
	DefaultGeminiModel = "gemini-2.5-flash-image"

	outputMimeType = "image/png"
	aspectRatio    = "1:1"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not configured")

// emptyResultMessage is reported when the provider answers without any image.
const emptyResultMessage = "No images were generated."

// Config holds everything the generator needs; nothing is read from the environment here.
type Config struct {
	APIKey   string
	Endpoint string // optional base URL override for the Gemini API
	Model    string
	Backend  string // imagen (default) or gemini
}

// Image is one image returned by a backend
type Image struct {
	Data     []byte
	MimeType string
}

// Backend performs the single provider call for an already composed prompt.
type Backend interface {
	GenerateImages(ctx context.Context, model, prompt string) ([]Image, error)
}

// Generator turns a prompt and style into one PNG data URI
type Generator struct {
	backend Backend
	model   string
}

// New validates cfg and builds a Generator for the configured backend.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Backend {
	case "", BackendImagen:
		model := cfg.Model
		if model == "" {
			model = DefaultImagenModel
		}
		b, err := newImagenBackend(ctx, cfg.APIKey, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize imagen backend: %w", err)
		}
		log.Info().Str("backend", BackendImagen).Str("model", model).Str("api_endpoint", cfg.Endpoint).Msg("Image generator initialized")
		return &Generator{backend: b, model: model}, nil
	case BackendGemini:
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		b, err := newGeminiBackend(ctx, cfg.APIKey, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini backend: %w", err)
		}
		log.Info().Str("backend", BackendGemini).Str("model", model).Str("api_endpoint", cfg.Endpoint).Msg("Image generator initialized")
		return &Generator{backend: b, model: model}, nil
	default:
		return nil, fmt.Errorf("unknown image backend %q (expected %s or %s)", cfg.Backend, BackendImagen, BackendGemini)
	}
}

// NewWithBackend builds a Generator around an existing backend.
func NewWithBackend(b Backend, model string) *Generator {
	return &Generator{backend: b, model: model}
}

// Unavailable returns a Generator whose every call fails with cause.
// Used when configuration is invalid so the server can still start.
func Unavailable(cause error) *Generator {
	return &Generator{backend: unavailableBackend{err: cause}}
}

type unavailableBackend struct {
	err error
}

func (u unavailableBackend) GenerateImages(context.Context, string, string) ([]Image, error) {
	return nil, u.err
}

// Model returns the provider model id used for generation.
func (g *Generator) Model() string {
	return g.model
}

// GenerateImage composes the styled prompt, issues exactly one provider call and
// returns the first image as a data URI. Every failure is a *models.GenerationError.
func (g *Generator) GenerateImage(ctx context.Context, prompt string, styleID models.StyleID) (*models.GenerationResult, error) {
	fullPrompt := style.ComposePrompt(prompt, styleID)

	log.Debug().
		Str("style", string(styleID)).
		Str("prompt", preview(fullPrompt, 50)).
		Msg("Generating image")

	images, err := g.backend.GenerateImages(ctx, g.model, fullPrompt)
	if err != nil {
		log.Error().Err(err).
			Str("model", g.model).
			Str("prompt_preview", preview(fullPrompt, 80)).
			Msg("Image generation failed")
		return nil, models.NewProviderError(err)
	}

	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		if img.MimeType != "" && img.MimeType != outputMimeType {
			log.Error().Str("model", g.model).Str("mime_type", img.MimeType).Msg("Provider returned a non-PNG image")
			return nil, models.NewProviderError(fmt.Errorf("unsupported image type %q, expected %s", img.MimeType, outputMimeType))
		}
		log.Info().
			Str("model", g.model).
			Int("image_size_bytes", len(img.Data)).
			Int("images", len(images)).
			Msg("Image generated")
		return &models.GenerationResult{
			DataURI:  DataURI(img.Data),
			MimeType: outputMimeType,
			Model:    g.model,
			Data:     img.Data,
		}, nil
	}

	log.Warn().Str("model", g.model).Int("images", len(images)).Msg("Provider returned no image")
	return nil, &models.GenerationError{Kind: models.ErrorKindEmptyResult, Message: emptyResultMessage}
}

// DataURI encodes PNG bytes as a data URI.
func DataURI(data []byte) string {
	return "data:" + outputMimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// preview truncates s to n runes for logging.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
