package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/storage"
)

const assessmentColumns = `
    id, barangay_id, year, status,
    rework_count, rework_requested_by, rework_requested_at,
    is_calibration_rework, calibrated_area_ids, pending_calibrations,
    mlgoo_recalibration_count, grace_period_expires_at, is_locked_for_deadline,
    area_submission_status, area_assessor_approved,
    final_compliance_status, area_results, institution_functionality,
    first_submitted_at, submitted_at, completed_at, created_at, updated_at`

// PutAssessment inserts or replaces one assessment record.
func (s *Store) PutAssessment(ctx context.Context, a domain.Assessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.CheckInvariants(); err != nil {
		return fmt.Errorf("assessment invariants: %w", err)
	}

	calibratedAreas, err := marshalJSON(a.CalibratedAreaIDs)
	if err != nil {
		return err
	}
	pendingCalibrations, err := marshalJSON(a.PendingCalibrations)
	if err != nil {
		return err
	}
	areaSubmission, err := marshalJSON(intKeyedToJSON(a.AreaSubmissionStatus))
	if err != nil {
		return err
	}
	areaApproved, err := marshalJSON(boolIntKeyedToJSON(a.AreaAssessorApproved))
	if err != nil {
		return err
	}
	areaResults, err := marshalJSON(a.AreaResults)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
INSERT INTO assessments (`+assessmentColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    rework_count = excluded.rework_count,
    rework_requested_by = excluded.rework_requested_by,
    rework_requested_at = excluded.rework_requested_at,
    is_calibration_rework = excluded.is_calibration_rework,
    calibrated_area_ids = excluded.calibrated_area_ids,
    pending_calibrations = excluded.pending_calibrations,
    mlgoo_recalibration_count = excluded.mlgoo_recalibration_count,
    grace_period_expires_at = excluded.grace_period_expires_at,
    is_locked_for_deadline = excluded.is_locked_for_deadline,
    area_submission_status = excluded.area_submission_status,
    area_assessor_approved = excluded.area_assessor_approved,
    final_compliance_status = excluded.final_compliance_status,
    area_results = excluded.area_results,
    institution_functionality = excluded.institution_functionality,
    first_submitted_at = excluded.first_submitted_at,
    submitted_at = excluded.submitted_at,
    completed_at = excluded.completed_at,
    updated_at = excluded.updated_at
`,
		a.ID, a.BarangayID, a.Year, string(a.Status),
		a.ReworkCount, a.ReworkRequestedBy, toNullMillis(a.ReworkRequestedAt),
		boolToInt(a.IsCalibrationRework), calibratedAreas, pendingCalibrations,
		a.MlgooRecalibrationCount, toNullMillis(a.GracePeriodExpiresAt), boolToInt(a.IsLockedForDeadline),
		areaSubmission, areaApproved,
		string(a.FinalComplianceStatus), areaResults, a.InstitutionFunctionality,
		toNullMillis(a.FirstSubmittedAt), toNullMillis(a.SubmittedAt), toNullMillis(a.CompletedAt),
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put assessment: %w", err)
	}
	return nil
}

// GetAssessment returns one assessment record by id.
func (s *Store) GetAssessment(ctx context.Context, id string) (domain.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Assessment{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)
	return scanAssessment(row)
}

// GetAssessmentForYear returns the single record for a (barangay, year).
func (s *Store) GetAssessmentForYear(ctx context.Context, barangayID string, year int) (domain.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Assessment{}, err
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE barangay_id = ? AND year = ?`,
		barangayID, year)
	return scanAssessment(row)
}

// ListAssessmentsPastDeadline returns unlocked assessments whose grace
// period expired before now.
func (s *Store) ListAssessmentsPastDeadline(ctx context.Context, now time.Time) ([]domain.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
SELECT `+assessmentColumns+`
FROM assessments
WHERE grace_period_expires_at IS NOT NULL
  AND grace_period_expires_at < ?
  AND is_locked_for_deadline = 0
ORDER BY grace_period_expires_at ASC
`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list assessments past deadline: %w", err)
	}
	defer rows.Close()

	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (domain.Assessment, error) {
	var (
		a                   domain.Assessment
		status              string
		reworkRequestedAt   sql.NullInt64
		isCalibrationRework int
		calibratedAreas     string
		pendingCalibrations string
		graceExpires        sql.NullInt64
		isLocked            int
		areaSubmission      string
		areaApproved        string
		finalCompliance     string
		areaResults         string
		firstSubmittedAt    sql.NullInt64
		submittedAt         sql.NullInt64
		completedAt         sql.NullInt64
		createdAt           int64
		updatedAt           int64
	)
	err := row.Scan(
		&a.ID, &a.BarangayID, &a.Year, &status,
		&a.ReworkCount, &a.ReworkRequestedBy, &reworkRequestedAt,
		&isCalibrationRework, &calibratedAreas, &pendingCalibrations,
		&a.MlgooRecalibrationCount, &graceExpires, &isLocked,
		&areaSubmission, &areaApproved,
		&finalCompliance, &areaResults, &a.InstitutionFunctionality,
		&firstSubmittedAt, &submittedAt, &completedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assessment{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("scan assessment: %w", err)
	}

	parsedStatus, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("scan assessment: %w", err)
	}
	a.Status = parsedStatus
	a.ReworkRequestedAt = fromNullMillis(reworkRequestedAt)
	a.IsCalibrationRework = isCalibrationRework != 0
	a.GracePeriodExpiresAt = fromNullMillis(graceExpires)
	a.IsLockedForDeadline = isLocked != 0
	a.FinalComplianceStatus = domain.ComplianceStatus(finalCompliance)
	a.FirstSubmittedAt = fromNullMillis(firstSubmittedAt)
	a.SubmittedAt = fromNullMillis(submittedAt)
	a.CompletedAt = fromNullMillis(completedAt)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(calibratedAreas), &a.CalibratedAreaIDs); err != nil {
		return domain.Assessment{}, fmt.Errorf("unmarshal calibrated areas: %w", err)
	}
	if err := json.Unmarshal([]byte(pendingCalibrations), &a.PendingCalibrations); err != nil {
		return domain.Assessment{}, fmt.Errorf("unmarshal pending calibrations: %w", err)
	}
	if a.AreaSubmissionStatus, err = intKeyedFromJSON(areaSubmission); err != nil {
		return domain.Assessment{}, err
	}
	if a.AreaAssessorApproved, err = boolIntKeyedFromJSON(areaApproved); err != nil {
		return domain.Assessment{}, err
	}
	if err := json.Unmarshal([]byte(areaResults), &a.AreaResults); err != nil {
		return domain.Assessment{}, fmt.Errorf("unmarshal area results: %w", err)
	}
	return a, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// intKeyedToJSON converts area-id keyed maps to string keys for JSON.
func intKeyedToJSON(in map[int]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func intKeyedFromJSON(raw string) (map[int]string, error) {
	var byName map[string]string
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("unmarshal area submission status: %w", err)
	}
	out := make(map[int]string, len(byName))
	for k, v := range byName {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("unmarshal area submission status: %w", err)
		}
		out[id] = v
	}
	return out, nil
}

func boolIntKeyedToJSON(in map[int]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func boolIntKeyedFromJSON(raw string) (map[int]bool, error) {
	var byName map[string]bool
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("unmarshal area assessor approved: %w", err)
	}
	out := make(map[int]bool, len(byName))
	for k, v := range byName {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("unmarshal area assessor approved: %w", err)
		}
		out[id] = v
	}
	return out, nil
}
