package imagegen

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// imagenBackend calls Models.GenerateImages on the unified genai SDK.
type imagenBackend struct {
	client *genai.Client
}

// clientConfig targets the Gemini API, optionally at a custom base URL.
func clientConfig(apiKey, endpoint string) *genai.ClientConfig {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if endpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}
	return cfg
}

func newImagenBackend(ctx context.Context, apiKey, endpoint string) (*imagenBackend, error) {
	client, err := genai.NewClient(ctx, clientConfig(apiKey, endpoint))
	if err != nil {
		return nil, err
	}
	return &imagenBackend{client: client}, nil
}

func (b *imagenBackend) GenerateImages(ctx context.Context, model, prompt string) ([]Image, error) {
	resp, err := b.client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: outputMimeType,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, err
	}
	return imagesFromResponse(resp), nil
}

func imagesFromResponse(resp *genai.GenerateImagesResponse) []Image {
	if resp == nil {
		return nil
	}
	out := make([]Image, 0, len(resp.GeneratedImages))
	for i, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil {
			reason := ""
			if gi != nil {
				reason = gi.RAIFilteredReason
			}
			log.Warn().Int("index", i).Str("rai_filtered_reason", reason).Msg("Generated image entry has no image")
			continue
		}
		out = append(out, Image{Data: gi.Image.ImageBytes, MimeType: gi.Image.MIMEType})
	}
	return out
}
