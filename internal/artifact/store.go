// ABOUTME: SQLite-backed artifact index using modernc.org/sqlite
// ABOUTME: Makes persisted artifacts queryable without scanning the directory

package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store indexes persisted artifacts in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the artifact index at the given path.
// Parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "artifact-store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("artifact index initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			intent TEXT NOT NULL,
			file_name TEXT NOT NULL,
			path TEXT NOT NULL,
			media_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			description TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_intent
			ON artifacts(intent);

		CREATE INDEX IF NOT EXISTS idx_artifacts_created
			ON artifacts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save records an artifact in the index.
func (s *Store) Save(ctx context.Context, ref *Ref) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, intent, file_name, path, media_type, size, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, ref.Intent, ref.FileName, ref.Path, ref.MediaType, ref.Size, ref.Description,
		ref.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}

// ListRecent returns the newest artifacts, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Ref, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intent, file_name, path, media_type, size, description, created_at
		FROM artifacts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var refs []*Ref
	for rows.Next() {
		var ref Ref
		var createdAt string
		var description sql.NullString
		if err := rows.Scan(&ref.ID, &ref.Intent, &ref.FileName, &ref.Path,
			&ref.MediaType, &ref.Size, &description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		ref.Description = description.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			ref.CreatedAt = t
		}
		refs = append(refs, &ref)
	}
	return refs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
