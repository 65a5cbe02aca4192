package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/generyand/sinag-sub000/internal/evidence"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// PutEvidence stores one evidence descriptor and its file contents.
func (s *Store) PutEvidence(ctx context.Context, d evidence.Descriptor, contents []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
INSERT INTO evidence (id, response_id, section, contents, uploaded_at)
VALUES (?, ?, ?, ?, ?)
`, d.ID, d.ResponseID, d.Section, contents, toMillis(d.UploadedAt))
	if err != nil {
		return fmt.Errorf("put evidence: %w", err)
	}
	return nil
}

// GetEvidence returns one evidence descriptor by id.
func (s *Store) GetEvidence(ctx context.Context, id string) (evidence.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return evidence.Descriptor{}, err
	}
	var (
		d          evidence.Descriptor
		uploadedAt int64
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, response_id, section, uploaded_at FROM evidence WHERE id = ?`, id,
	).Scan(&d.ID, &d.ResponseID, &d.Section, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return evidence.Descriptor{}, storage.ErrNotFound
	}
	if err != nil {
		return evidence.Descriptor{}, fmt.Errorf("get evidence: %w", err)
	}
	d.UploadedAt = fromMillis(uploadedAt)
	return d, nil
}

// DeleteEvidence removes one evidence file.
func (s *Store) DeleteEvidence(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM evidence WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListEvidence returns every descriptor attached to a response, oldest
// first.
func (s *Store) ListEvidence(ctx context.Context, responseID string) ([]evidence.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, response_id, section, uploaded_at FROM evidence WHERE response_id = ? ORDER BY uploaded_at ASC, id ASC`,
		responseID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []evidence.Descriptor
	for rows.Next() {
		var (
			d          evidence.Descriptor
			uploadedAt int64
		)
		if err := rows.Scan(&d.ID, &d.ResponseID, &d.Section, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		d.UploadedAt = fromMillis(uploadedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return out, nil
}
