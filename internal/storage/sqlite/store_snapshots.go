package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/generyand/sinag-sub000/internal/storage"
)

// PutSnapshot stores one frozen indicator definition. Re-freezing the
// same (assessment, indicator) pair is a no-op: snapshots are immutable.
func (s *Store) PutSnapshot(ctx context.Context, snap storage.IndicatorSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
INSERT INTO indicator_snapshots (id, assessment_id, indicator_id, year, definition, frozen_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(assessment_id, indicator_id) DO NOTHING
`, snap.ID, snap.AssessmentID, snap.IndicatorID, snap.Year, snap.Definition, toMillis(snap.FrozenAt))
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the frozen definition for one indicator.
func (s *Store) GetSnapshot(ctx context.Context, assessmentID, indicatorID string) (storage.IndicatorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.IndicatorSnapshot{}, err
	}
	var (
		snap     storage.IndicatorSnapshot
		frozenAt int64
	)
	err := s.q.QueryRowContext(ctx, `
SELECT id, assessment_id, indicator_id, year, definition, frozen_at
FROM indicator_snapshots
WHERE assessment_id = ? AND indicator_id = ?
`, assessmentID, indicatorID).Scan(
		&snap.ID, &snap.AssessmentID, &snap.IndicatorID, &snap.Year, &snap.Definition, &frozenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.IndicatorSnapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.IndicatorSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snap.FrozenAt = fromMillis(frozenAt)
	return snap, nil
}

// ListSnapshots returns every frozen definition of an assessment.
func (s *Store) ListSnapshots(ctx context.Context, assessmentID string) ([]storage.IndicatorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
SELECT id, assessment_id, indicator_id, year, definition, frozen_at
FROM indicator_snapshots
WHERE assessment_id = ?
ORDER BY indicator_id ASC
`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []storage.IndicatorSnapshot
	for rows.Next() {
		var (
			snap     storage.IndicatorSnapshot
			frozenAt int64
		)
		if err := rows.Scan(&snap.ID, &snap.AssessmentID, &snap.IndicatorID, &snap.Year, &snap.Definition, &frozenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.FrozenAt = fromMillis(frozenAt)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
