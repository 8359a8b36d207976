// ABOUTME: Music generation capability against a custom HTTP audio service
// ABOUTME: Mirrors the video service contract with audio payload fields

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

// MusicGenerator calls an external audio synthesis service.
type MusicGenerator struct {
	client   *http.Client
	endpoint string
	apiKey   string
	voice    string
}

type musicRequest struct {
	Prompt string `json:"prompt"`
	Voice  string `json:"voice,omitempty"`
}

type musicResponse struct {
	AudioBase64 string `json:"audio_base64"`
	AudioURL    string `json:"audio_url"`
	ContentType string `json:"content_type"`
	Ext         string `json:"ext"`
	Summary     string `json:"summary"`
}

// NewMusicGenerator creates the music capability.
func NewMusicGenerator(endpoint, apiKey, voice string) *MusicGenerator {
	return &MusicGenerator{
		client:   &http.Client{Timeout: 5 * time.Minute},
		endpoint: endpoint,
		apiKey:   apiKey,
		voice:    voice,
	}
}

// Execute submits the prompt and materializes the resulting audio.
func (g *MusicGenerator) Execute(ctx context.Context, input string) (*Output, error) {
	body, err := json.Marshal(musicRequest{Prompt: input, Voice: g.voice})
	if err != nil {
		return nil, fmt.Errorf("encoding music request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building music request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling music service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("music service returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading audio payload: %w", err)
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return &Output{Binary: &Binary{
			Data:      data,
			MediaType: contentType,
			FileExt:   "mp3",
			Summary:   "External music service",
		}}, nil
	}

	var parsed musicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding music response: %w", err)
	}

	mediaType := parsed.ContentType
	if mediaType == "" {
		mediaType = "audio/mpeg"
	}
	ext := parsed.Ext
	if ext == "" {
		ext = "mp3"
	}
	summary := parsed.Summary
	if summary == "" {
		summary = "Music sketch"
	}

	if parsed.AudioBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding audio payload: %w", err)
		}
		return &Output{Binary: &Binary{Data: data, MediaType: mediaType, FileExt: ext, Summary: summary}}, nil
	}

	if parsed.AudioURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.AudioURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building audio fetch: %w", err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching audio: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading fetched audio: %w", err)
		}
		return &Output{Binary: &Binary{Data: data, MediaType: mediaType, FileExt: ext, Summary: summary}}, nil
	}

	return nil, fmt.Errorf("music response has neither audio_base64 nor audio_url")
}
