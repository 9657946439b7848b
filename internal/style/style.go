// Package style maps rendering styles to the descriptive text appended to a prompt.
package style

import (
	"strings"

	"github.com/sole-vault/shoe-studio/internal/models"
)

const defaultSuffix = ", as a professional digital product photograph, studio lighting, clean background"

var suffixes = map[models.StyleID]string{
	models.StylePhotorealistic: defaultSuffix,
	models.Style3DRender:       ", as a detailed 3D product render, octane render, on a clean studio background",
	models.StyleIllustration:   ", as a digital vector illustration, vibrant colors, flat design, on a clean background",
	models.StyleLineArt:        ", as a clean black and white line art drawing, technical sketch style, on a white background",
}

// Option is a style as offered in the style picker
type Option struct {
	ID   models.StyleID
	Name string
}

var options = []Option{
	{ID: models.StylePhotorealistic, Name: "Photorealistic"},
	{ID: models.Style3DRender, Name: "3D Render"},
	{ID: models.StyleIllustration, Name: "Illustration"},
	{ID: models.StyleLineArt, Name: "Line Art"},
}

// ResolveSuffix returns the prompt suffix for id. Unknown or empty ids get the photorealistic suffix.
func ResolveSuffix(id models.StyleID) string {
	if s, ok := suffixes[id]; ok {
		return s
	}
	return defaultSuffix
}

// ComposePrompt appends the style suffix to the user's prompt.
func ComposePrompt(prompt string, id models.StyleID) string {
	return prompt + ResolveSuffix(id)
}

// Parse converts user input to a StyleID, falling back to the default style.
func Parse(raw string) models.StyleID {
	id := models.StyleID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := suffixes[id]; ok {
		return id
	}
	return models.DefaultStyle
}

// All returns the recognized styles in display order.
func All() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}
