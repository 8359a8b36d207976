// ABOUTME: Video generation capability against a custom HTTP service
// ABOUTME: Accepts raw binary responses or JSON with inline or linked payloads

package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VideoGenerator calls an external video synthesis service. The service
// either streams the file back directly or answers with JSON carrying
// the payload inline (base64) or as a URL to fetch.
type VideoGenerator struct {
	client   *http.Client
	endpoint string
	apiKey   string
	format   string
}

type videoRequest struct {
	Prompt string `json:"prompt"`
	Format string `json:"format"`
}

type videoResponse struct {
	VideoBase64 string `json:"video_base64"`
	VideoURL    string `json:"video_url"`
	ContentType string `json:"content_type"`
	Ext         string `json:"ext"`
	Summary     string `json:"summary"`
}

// NewVideoGenerator creates the video capability. apiKey may be empty
// for unauthenticated services.
func NewVideoGenerator(endpoint, apiKey string) *VideoGenerator {
	return &VideoGenerator{
		client:   &http.Client{Timeout: 5 * time.Minute},
		endpoint: endpoint,
		apiKey:   apiKey,
		format:   "mp4",
	}
}

// Execute submits the prompt and materializes the resulting video.
func (g *VideoGenerator) Execute(ctx context.Context, input string) (*Output, error) {
	body, err := json.Marshal(videoRequest{Prompt: input, Format: g.format})
	if err != nil {
		return nil, fmt.Errorf("encoding video request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building video request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling video service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("video service returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading video payload: %w", err)
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return &Output{Binary: &Binary{
			Data:      data,
			MediaType: contentType,
			FileExt:   g.format,
			Summary:   "External video service",
		}}, nil
	}

	var parsed videoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding video response: %w", err)
	}
	return g.fromJSON(ctx, parsed)
}

func (g *VideoGenerator) fromJSON(ctx context.Context, payload videoResponse) (*Output, error) {
	mediaType := payload.ContentType
	if mediaType == "" {
		mediaType = "video/mp4"
	}
	ext := payload.Ext
	if ext == "" {
		ext = g.format
	}
	summary := payload.Summary
	if summary == "" {
		summary = "Video plan"
	}

	if payload.VideoBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(payload.VideoBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding video payload: %w", err)
		}
		return &Output{Binary: &Binary{Data: data, MediaType: mediaType, FileExt: ext, Summary: summary}}, nil
	}

	if payload.VideoURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.VideoURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building video fetch: %w", err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching video: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("video fetch returned status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading fetched video: %w", err)
		}
		return &Output{Binary: &Binary{Data: data, MediaType: mediaType, FileExt: ext, Summary: summary}}, nil
	}

	return nil, fmt.Errorf("video response has neither video_base64 nor video_url")
}
