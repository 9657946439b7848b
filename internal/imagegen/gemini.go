package imagegen

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// geminiBackend asks a Gemini image model for native IMAGE output via GenerateContent.
type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, apiKey, endpoint string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, clientConfig(apiKey, endpoint))
	if err != nil {
		return nil, err
	}
	return &geminiBackend{client: client}, nil
}

func (b *geminiBackend) GenerateImages(ctx context.Context, model, prompt string) ([]Image, error) {
	// The Gemini API rejects an output MIME type here; GenerateImage enforces PNG instead.
	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		CandidateCount:     1,
		ImageConfig:        &genai.ImageConfig{AspectRatio: aspectRatio},
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from %s", model)
	}
	return imagesFromCandidates(resp.Candidates), nil
}

// imagesFromCandidates collects inline image blobs, first candidate first.
func imagesFromCandidates(candidates []*genai.Candidate) []Image {
	var out []Image
	for i, cand := range candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for j, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			log.Debug().
				Int("candidate", i).
				Int("part", j).
				Str("mime_type", part.InlineData.MIMEType).
				Int("image_size_bytes", len(part.InlineData.Data)).
				Msg("Gemini image blob")
			out = append(out, Image{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType})
		}
	}
	return out
}
