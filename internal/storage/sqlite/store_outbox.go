package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/generyand/sinag-sub000/internal/storage"
)

// EnqueueJob inserts a background job unless its idempotency key already
// exists.
func (s *Store) EnqueueJob(ctx context.Context, job storage.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(job.Key) == "" {
		return fmt.Errorf("job key is required")
	}
	if strings.TrimSpace(job.Name) == "" {
		return fmt.Errorf("job name is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = job.CreatedAt
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO outbox_jobs (
    key, name, assessment_id, area_id, payload,
    status, attempt_count, next_attempt_at, last_error, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, 'pending', 0, ?, '', ?, ?)
ON CONFLICT(key) DO NOTHING
`,
		job.Key, job.Name, job.AssessmentID, job.AreaID, job.Payload,
		toMillis(job.NextAttemptAt), toMillis(job.CreatedAt), toMillis(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimDueJobs atomically leases up to limit due jobs. A claimed job is
// moved to processing with its lease recorded as the next attempt time,
// so crashed workers release jobs when the lease lapses.
func (s *Store) ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]storage.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.q.QueryContext(ctx, `
UPDATE outbox_jobs
SET status = 'processing',
    next_attempt_at = ?,
    updated_at = ?
WHERE key IN (
    SELECT key FROM outbox_jobs
    WHERE (status = 'pending' OR status = 'failed' OR status = 'processing')
      AND next_attempt_at <= ?
    ORDER BY next_attempt_at ASC
    LIMIT ?
)
RETURNING key, name, assessment_id, area_id, payload, status, attempt_count, next_attempt_at, last_error, created_at, updated_at
`,
		toMillis(now.Add(lease)), toMillis(now), toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	var out []storage.JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed jobs: %w", err)
	}
	return out, nil
}

// CompleteJob marks a claimed job succeeded.
func (s *Store) CompleteJob(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
UPDATE outbox_jobs
SET status = 'succeeded', last_error = '', updated_at = ?
WHERE key = ?
`, toMillis(time.Now().UTC()), key)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records a failed attempt. retry=false dead-letters the job.
func (s *Store) FailJob(ctx context.Context, key string, attemptCount int, lastError string, nextAttemptAt time.Time, retry bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	status := storage.JobFailed
	if !retry {
		status = storage.JobDead
	}
	_, err := s.q.ExecContext(ctx, `
UPDATE outbox_jobs
SET status = ?, attempt_count = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
WHERE key = ?
`, status, attemptCount, lastError, toMillis(nextAttemptAt), toMillis(time.Now().UTC()), key)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// CountJobs returns the queue depth grouped by status.
func (s *Store) CountJobs(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		out[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job counts: %w", err)
	}
	return out, nil
}

func scanJob(row rowScanner) (storage.JobRecord, error) {
	var (
		job           storage.JobRecord
		nextAttemptAt int64
		createdAt     int64
		updatedAt     int64
	)
	err := row.Scan(
		&job.Key, &job.Name, &job.AssessmentID, &job.AreaID, &job.Payload,
		&job.Status, &job.AttemptCount, &nextAttemptAt, &job.LastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return storage.JobRecord{}, fmt.Errorf("scan job: %w", err)
	}
	job.NextAttemptAt = fromMillis(nextAttemptAt)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	return job, nil
}
