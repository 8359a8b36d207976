// ABOUTME: Persists generated binary payloads to disk with metadata sidecars
// ABOUTME: Filenames encode intent, timestamp, and a short unique suffix

package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/musehq/muse-gateway/internal/capability"
)

// Ref describes a persisted artifact. It is what artifact events and the
// index store carry.
type Ref struct {
	ID          string
	Intent      string
	FileName    string
	Path        string
	MediaType   string
	Size        int64
	Description string
	CreatedAt   time.Time
}

// Writer persists binary payloads under a root directory. Every artifact
// gets a sibling <base>.meta.json file describing it, so the directory is
// self-describing even without the index database.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &Writer{root: dir}, nil
}

// Persist writes the payload and its metadata sidecar to disk.
func (w *Writer) Persist(intent string, bin *capability.Binary) (*Ref, error) {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}

	now := time.Now()
	id := uuid.New().String()
	baseName := fmt.Sprintf("%s_%s_%s", intent, now.Format("20060102_150405"), id[:8])

	fileName := baseName + "." + bin.FileExt
	path := filepath.Join(w.root, fileName)
	if err := os.WriteFile(path, bin.Data, 0644); err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}

	meta := map[string]any{
		"intent":      intent,
		"media_type":  bin.MediaType,
		"description": bin.Summary,
		"artifact":    fileName,
		"created_at":  now.Format(time.RFC3339),
	}
	if prompt, ok := bin.Metadata["prompt"].(string); ok {
		meta["prompt"] = prompt
	}
	if len(bin.Metadata) > 0 {
		meta["metadata"] = bin.Metadata
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding artifact metadata: %w", err)
	}
	metaPath := filepath.Join(w.root, baseName+".meta.json")
	if err := os.WriteFile(metaPath, metaData, 0644); err != nil {
		return nil, fmt.Errorf("writing artifact metadata: %w", err)
	}

	return &Ref{
		ID:          id,
		Intent:      intent,
		FileName:    fileName,
		Path:        path,
		MediaType:   bin.MediaType,
		Size:        int64(len(bin.Data)),
		Description: bin.Summary,
		CreatedAt:   now,
	}, nil
}
