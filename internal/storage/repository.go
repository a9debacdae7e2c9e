package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slidevoice/internal/decks"
)

const defaultRecentLimit = 20

// UploadRepository persists the upload history in PostgreSQL.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new repository.
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Save records an upload. Uploading under an existing presentation id
// replaces the previous row.
func (r *UploadRepository) Save(ctx context.Context, u decks.Upload) error {
	if u.PresentationID == "" {
		return fmt.Errorf("save upload: %w", decks.ErrMissingID)
	}

	const upsert = `
		INSERT INTO uploads (
			presentation_id, file_name, fingerprint, size_bytes, materials, script_requested, slide_count, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (presentation_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			fingerprint = EXCLUDED.fingerprint,
			size_bytes = EXCLUDED.size_bytes,
			materials = EXCLUDED.materials,
			script_requested = EXCLUDED.script_requested,
			slide_count = GREATEST(uploads.slide_count, EXCLUDED.slide_count)
	`
	if _, err := r.db.ExecContext(ctx, upsert,
		u.PresentationID,
		u.FileName,
		u.Fingerprint,
		u.SizeBytes,
		u.Materials,
		u.ScriptRequested,
		u.SlideCount,
		u.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// UpdateSlideCount stores the slide count discovered after processing.
func (r *UploadRepository) UpdateSlideCount(ctx context.Context, presentationID string, n int) error {
	const update = `UPDATE uploads SET slide_count = $2 WHERE presentation_id = $1`
	res, err := r.db.ExecContext(ctx, update, presentationID, n)
	if err != nil {
		return fmt.Errorf("update slide count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update slide count: %w", err)
	}
	if affected == 0 {
		return decks.ErrNotFound
	}
	return nil
}

// Get fetches one upload by presentation id.
func (r *UploadRepository) Get(ctx context.Context, presentationID string) (decks.Upload, error) {
	const query = `
		SELECT presentation_id, file_name, fingerprint, size_bytes, materials, script_requested, slide_count, created_at
		FROM uploads
		WHERE presentation_id = $1
	`
	var u decks.Upload
	if err := r.db.QueryRowContext(ctx, query, presentationID).Scan(
		&u.PresentationID,
		&u.FileName,
		&u.Fingerprint,
		&u.SizeBytes,
		&u.Materials,
		&u.ScriptRequested,
		&u.SlideCount,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decks.Upload{}, decks.ErrNotFound
		}
		return decks.Upload{}, fmt.Errorf("select upload: %w", err)
	}
	return u, nil
}

// ListRecent returns the newest uploads first.
func (r *UploadRepository) ListRecent(ctx context.Context, limit int) ([]decks.Upload, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	const query = `
		SELECT presentation_id, file_name, fingerprint, size_bytes, materials, script_requested, slide_count, created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var result []decks.Upload
	for rows.Next() {
		var u decks.Upload
		if err := rows.Scan(
			&u.PresentationID,
			&u.FileName,
			&u.Fingerprint,
			&u.SizeBytes,
			&u.Materials,
			&u.ScriptRequested,
			&u.SlideCount,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
