package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/storage"
)

const responseColumns = `
    id, assessment_id, indicator_id, area_id,
    data, checklist,
    is_completed, requires_rework, flagged_for_calibration,
    validation_status, generated_remark, feedback_comment,
    last_cycle_started_at, created_at, updated_at`

// PutResponse inserts or replaces one response record.
func (s *Store) PutResponse(ctx context.Context, r domain.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := marshalJSON(r.Data)
	if err != nil {
		return err
	}
	checklist, err := checklistToJSON(r.Checklist)
	if err != nil {
		return err
	}
	var validationStatus sql.NullString
	if r.ValidationStatus != nil {
		validationStatus = sql.NullString{String: string(*r.ValidationStatus), Valid: true}
	}

	_, err = s.q.ExecContext(ctx, `
INSERT INTO responses (`+responseColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    data = excluded.data,
    checklist = excluded.checklist,
    is_completed = excluded.is_completed,
    requires_rework = excluded.requires_rework,
    flagged_for_calibration = excluded.flagged_for_calibration,
    validation_status = excluded.validation_status,
    generated_remark = excluded.generated_remark,
    feedback_comment = excluded.feedback_comment,
    last_cycle_started_at = excluded.last_cycle_started_at,
    updated_at = excluded.updated_at
`,
		r.ID, r.AssessmentID, r.IndicatorID, r.AreaID,
		data, checklist,
		boolToInt(r.IsCompleted), boolToInt(r.RequiresRework), boolToInt(r.FlaggedForCalibration),
		validationStatus, r.GeneratedRemark, r.FeedbackComment,
		toNullMillis(r.LastCycleStartedAt), toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put response: %w", err)
	}
	return nil
}

// GetResponse returns one response record by id.
func (s *Store) GetResponse(ctx context.Context, id string) (domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return domain.Response{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	return scanResponse(row)
}

// GetResponseByIndicator returns the response for one indicator in one
// assessment.
func (s *Store) GetResponseByIndicator(ctx context.Context, assessmentID, indicatorID string) (domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return domain.Response{}, err
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE assessment_id = ? AND indicator_id = ?`,
		assessmentID, indicatorID)
	return scanResponse(row)
}

// ListResponses returns every response of an assessment ordered by
// indicator id.
func (s *Store) ListResponses(ctx context.Context, assessmentID string) ([]domain.Response, error) {
	return s.listResponses(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE assessment_id = ? ORDER BY indicator_id ASC`,
		assessmentID)
}

// ListAreaResponses returns the responses of one governance area ordered
// by indicator id.
func (s *Store) ListAreaResponses(ctx context.Context, assessmentID string, areaID int) ([]domain.Response, error) {
	return s.listResponses(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE assessment_id = ? AND area_id = ? ORDER BY indicator_id ASC`,
		assessmentID, areaID)
}

func (s *Store) listResponses(ctx context.Context, query string, args ...any) ([]domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []domain.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

func scanResponse(row rowScanner) (domain.Response, error) {
	var (
		r                domain.Response
		data             string
		checklist        string
		isCompleted      int
		requiresRework   int
		flagged          int
		validationStatus sql.NullString
		lastCycle        sql.NullInt64
		createdAt        int64
		updatedAt        int64
	)
	err := row.Scan(
		&r.ID, &r.AssessmentID, &r.IndicatorID, &r.AreaID,
		&data, &checklist,
		&isCompleted, &requiresRework, &flagged,
		&validationStatus, &r.GeneratedRemark, &r.FeedbackComment,
		&lastCycle, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Response{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("scan response: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
		return domain.Response{}, fmt.Errorf("unmarshal response data: %w", err)
	}
	if r.Checklist, err = checklistFromJSON(checklist); err != nil {
		return domain.Response{}, err
	}
	r.IsCompleted = isCompleted != 0
	r.RequiresRework = requiresRework != 0
	r.FlaggedForCalibration = flagged != 0
	if validationStatus.Valid {
		parsed, err := domain.ParseValidationStatus(validationStatus.String)
		if err != nil {
			return domain.Response{}, fmt.Errorf("scan response: %w", err)
		}
		r.ValidationStatus = &parsed
	}
	r.LastCycleStartedAt = fromNullMillis(lastCycle)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}
