// Package jobs runs the asynchronous side effects of workflow
// transitions through a sqlite-backed outbox. Jobs are idempotent by
// key, so re-dispatching after a retry or crash is harmless.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/generyand/sinag-sub000/internal/storage"
)

// Job names dispatched by the workflow.
const (
	JobGenerateReworkSummary      = "generate_rework_summary"
	JobGenerateCalibrationSummary = "generate_calibration_summary"
	JobGenerateInsights           = "generate_insights"

	JobNotifySubmission    = "send_submission_notification"
	JobNotifyRework        = "send_rework_notification"
	JobNotifyCalibration   = "send_calibration_notification"
	JobNotifyValidation    = "send_validation_notification"
	JobNotifyApproval      = "send_approval_notification"
	JobNotifyRecalibration = "send_recalibration_notification"
	JobNotifyDeadline      = "send_deadline_notification"
)

// Job is one named side effect keyed by assessment (plus area for
// per-area jobs).
type Job struct {
	Name         string
	AssessmentID string
	AreaID       int
	Payload      map[string]any
}

// Key returns the idempotency key for the job.
func (j Job) Key() string {
	if j.AreaID > 0 {
		return j.Name + ":" + j.AssessmentID + ":" + strconv.Itoa(j.AreaID)
	}
	return j.Name + ":" + j.AssessmentID
}

// Dispatcher enqueues jobs for asynchronous delivery. Dispatch failures
// are best-effort from the workflow's perspective and never roll back a
// committed transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// OutboxDispatcher writes jobs to the durable outbox table.
type OutboxDispatcher struct {
	store storage.OutboxStore
	clock func() time.Time
}

var _ Dispatcher = (*OutboxDispatcher)(nil)

// NewOutboxDispatcher creates a dispatcher over the outbox store.
func NewOutboxDispatcher(store storage.OutboxStore) *OutboxDispatcher {
	return &OutboxDispatcher{store: store, clock: time.Now}
}

// NewOutboxDispatcherWithClock creates a dispatcher with an injected
// clock for tests.
func NewOutboxDispatcherWithClock(store storage.OutboxStore, clock func() time.Time) *OutboxDispatcher {
	if clock == nil {
		clock = time.Now
	}
	return &OutboxDispatcher{store: store, clock: clock}
}

// Dispatch enqueues the job. Enqueueing an already-known key is a no-op.
func (d *OutboxDispatcher) Dispatch(ctx context.Context, job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.AssessmentID == "" {
		return fmt.Errorf("job assessment id is required")
	}

	var payload []byte
	if len(job.Payload) > 0 {
		encoded, err := json.Marshal(job.Payload)
		if err != nil {
			return fmt.Errorf("encode job payload: %w", err)
		}
		payload = encoded
	}

	now := d.clock().UTC()
	return d.store.EnqueueJob(ctx, storage.JobRecord{
		Key:           job.Key(),
		Name:          job.Name,
		AssessmentID:  job.AssessmentID,
		AreaID:        job.AreaID,
		Payload:       payload,
		Status:        storage.JobPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	})
}
