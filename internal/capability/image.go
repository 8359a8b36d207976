// ABOUTME: Image generation capability using the OpenAI images endpoint
// ABOUTME: Requests base64 payloads and records generation metadata

package capability

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
)

// ImageGenerator produces PNG images from text prompts.
type ImageGenerator struct {
	client openai.Client
	model  string
}

// NewImageGenerator creates the image capability with the given model.
func NewImageGenerator(client openai.Client, model string) *ImageGenerator {
	return &ImageGenerator{client: client, model: model}
}

// Execute generates a single 1024x1024 image for the prompt.
func (g *ImageGenerator) Execute(ctx context.Context, input string) (*Output, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         input,
		Model:          g.model,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image generation: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}

	return &Output{Binary: &Binary{
		Data:      data,
		MediaType: "image/png",
		FileExt:   "png",
		Summary:   fmt.Sprintf("Model: %s | Size: 1024x1024", g.model),
		Metadata: map[string]any{
			"prompt": input,
			"model":  g.model,
			"width":  1024,
			"height": 1024,
		},
	}}, nil
}
