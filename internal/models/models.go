package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StyleID identifies a rendering style for the generated shoe image
type StyleID string

const (
	StylePhotorealistic StyleID = "photorealistic"
	Style3DRender       StyleID = "3d-render"
	StyleIllustration   StyleID = "illustration"
	StyleLineArt        StyleID = "line-art"

	// DefaultStyle is used when no style, or an unknown one, is supplied.
	DefaultStyle = StylePhotorealistic
)

// PromptRequiredMessage is shown when generation is triggered with a blank prompt.
const PromptRequiredMessage = "Please enter a description for the shoe."

// ErrValidation is the sentinel matched by validation failures.
var ErrValidation = errors.New("validation error")

// GenerationRequest is a single prompt/style pair submitted by the user
type GenerationRequest struct {
	Prompt string  `json:"prompt"`
	Style  StyleID `json:"style"`
}

// Validate checks that the prompt is non-empty after trimming.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &GenerationError{Kind: ErrorKindValidation, Message: PromptRequiredMessage}
	}
	return nil
}

// GenerationResult is one encoded image returned by the provider
type GenerationResult struct {
	DataURI  string `json:"image"`
	MimeType string `json:"mime_type"`
	Model    string `json:"model,omitempty"`
	Data     []byte `json:"-"`
}

// ErrorKind classifies a GenerationError
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindEmptyResult ErrorKind = "empty_result"
	ErrorKindProvider    ErrorKind = "provider"
)

// GenerationError is the only error type surfaced by image generation.
// Message is safe to show to the user as-is.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrValidation) match validation failures.
func (e *GenerationError) Is(target error) bool {
	return target == ErrValidation && e.Kind == ErrorKindValidation
}

// NewProviderError wraps a provider failure. A nil cause or one without a
// message produces the generic unknown-error message.
func NewProviderError(cause error) *GenerationError {
	if cause == nil || cause.Error() == "" {
		return &GenerationError{
			Kind:    ErrorKindProvider,
			Message: "An unknown error occurred during image generation.",
			Err:     cause,
		}
	}
	return &GenerationError{
		Kind:    ErrorKindProvider,
		Message: fmt.Sprintf("Failed to generate image: %s", cause.Error()),
		Err:     cause,
	}
}

// Phase is the display state of a studio session
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// State is the full UI state of one browser session.
// Result is set only in PhaseSuccess and Error only in PhaseFailed.
type State struct {
	Phase     Phase             `json:"phase"`
	Prompt    string            `json:"prompt"`
	Style     StyleID           `json:"style"`
	Result    *GenerationResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Notice    string            `json:"notice,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Busy reports whether a generation is in flight.
func (s State) Busy() bool {
	return s.Phase == PhaseLoading
}
