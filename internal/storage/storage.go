// Package storage defines the persistence interfaces for the assessment core.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/evidence"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// AssessmentStore persists assessment workflow records.
type AssessmentStore interface {
	PutAssessment(ctx context.Context, a domain.Assessment) error
	GetAssessment(ctx context.Context, id string) (domain.Assessment, error)
	// GetAssessmentForYear returns the single record for a (barangay,
	// year) pair.
	GetAssessmentForYear(ctx context.Context, barangayID string, year int) (domain.Assessment, error)
	// ListAssessmentsPastDeadline returns unlocked assessments whose
	// grace period expired before now.
	ListAssessmentsPastDeadline(ctx context.Context, now time.Time) ([]domain.Assessment, error)
}

// ResponseStore persists per-indicator responses.
type ResponseStore interface {
	PutResponse(ctx context.Context, r domain.Response) error
	GetResponse(ctx context.Context, id string) (domain.Response, error)
	// GetResponseByIndicator returns the response for one indicator in
	// one assessment.
	GetResponseByIndicator(ctx context.Context, assessmentID, indicatorID string) (domain.Response, error)
	// ListResponses returns every response of an assessment, ordered by
	// indicator id.
	ListResponses(ctx context.Context, assessmentID string) ([]domain.Response, error)
	// ListAreaResponses returns the responses of one governance area.
	ListAreaResponses(ctx context.Context, assessmentID string, areaID int) ([]domain.Response, error)
}

// EvidenceStore persists evidence descriptors and file contents.
type EvidenceStore interface {
	PutEvidence(ctx context.Context, d evidence.Descriptor, contents []byte) error
	GetEvidence(ctx context.Context, id string) (evidence.Descriptor, error)
	DeleteEvidence(ctx context.Context, id string) error
	ListEvidence(ctx context.Context, responseID string) ([]evidence.Descriptor, error)
}

// IndicatorSnapshot is a frozen, immutable copy of one indicator
// definition taken when an assessment is first submitted. Historical
// reads use snapshots, never the live catalog.
type IndicatorSnapshot struct {
	ID           string
	AssessmentID string
	IndicatorID  string
	Year         int
	Definition   []byte
	FrozenAt     time.Time
}

// SnapshotStore persists frozen indicator definitions.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, s IndicatorSnapshot) error
	GetSnapshot(ctx context.Context, assessmentID, indicatorID string) (IndicatorSnapshot, error)
	ListSnapshots(ctx context.Context, assessmentID string) ([]IndicatorSnapshot, error)
}

// Job statuses for the background outbox.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobFailed     = "failed"
	JobSucceeded  = "succeeded"
	JobDead       = "dead"
)

// JobRecord is one enqueued background side effect. Key makes delivery
// idempotent: enqueueing the same key twice is a no-op.
type JobRecord struct {
	Key           string
	Name          string
	AssessmentID  string
	AreaID        int
	Payload       []byte
	Status        string
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OutboxStore persists background jobs with lease-based claims.
type OutboxStore interface {
	// EnqueueJob inserts a job unless its key already exists.
	EnqueueJob(ctx context.Context, job JobRecord) error
	// ClaimDueJobs atomically moves up to limit due jobs to processing
	// and leases them until now+lease.
	ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]JobRecord, error)
	// CompleteJob marks a claimed job succeeded.
	CompleteJob(ctx context.Context, key string) error
	// FailJob records a failed attempt and schedules the retry, or
	// dead-letters the job when retry is false.
	FailJob(ctx context.Context, key string, attemptCount int, lastError string, nextAttemptAt time.Time, retry bool) error
	// CountJobs returns the number of jobs per status.
	CountJobs(ctx context.Context) (map[string]int, error)
}

// Store combines every persistence interface with transactional access.
type Store interface {
	AssessmentStore
	ResponseStore
	EvidenceStore
	SnapshotStore
	OutboxStore

	// InTx runs fn against a transactional view of the store. Guards
	// that protect cross-actor invariants re-read authoritative state
	// through the transactional view immediately before committing.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
