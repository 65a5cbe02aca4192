// Package service implements the assessment workflow state machine.
//
// Every operation runs inside one store transaction and re-reads the
// authoritative record state immediately before committing, so
// cross-actor guards (one rework per assessment, one calibration per
// area, "all areas validated" detection) never act on a stale snapshot.
// Asynchronous side effects are dispatched after commit and never roll
// back a committed transition.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/jobs"
	"github.com/generyand/sinag-sub000/internal/schema"
	"github.com/generyand/sinag-sub000/internal/snapshot"
	"github.com/generyand/sinag-sub000/internal/storage"
)

const defaultDeadlineWindow = 7 * 24 * time.Hour

// Config tunes the workflow service.
type Config struct {
	// DeadlineWindow is the correction window granted on every rework,
	// calibration, and recalibration request.
	DeadlineWindow time.Duration
}

// Service is the workflow state machine over one assessment store.
type Service struct {
	store       storage.Store
	catalog     *schema.Catalog
	snapshots   *snapshot.Service
	dispatcher  jobs.Dispatcher
	clock       func() time.Time
	idGenerator func() (string, error)
	window      time.Duration
	tracer      trace.Tracer
}

// New creates a Service with default dependencies.
func New(store storage.Store, catalog *schema.Catalog, snapshots *snapshot.Service, dispatcher jobs.Dispatcher, cfg Config) *Service {
	window := cfg.DeadlineWindow
	if window <= 0 {
		window = defaultDeadlineWindow
	}
	return &Service{
		store:       store,
		catalog:     catalog,
		snapshots:   snapshots,
		dispatcher:  dispatcher,
		clock:       time.Now,
		idGenerator: domain.NewID,
		window:      window,
		tracer:      otel.Tracer("sinag/assessment"),
	}
}

// WithClock overrides the clock and id generator for tests.
func (s *Service) WithClock(clock func() time.Time, idGenerator func() (string, error)) *Service {
	if clock != nil {
		s.clock = clock
	}
	if idGenerator != nil {
		s.idGenerator = idGenerator
	}
	return s
}

// GetOrCreateAssessment returns the single record for (barangay, year),
// creating it on first access.
func (s *Service) GetOrCreateAssessment(ctx context.Context, barangayID string, year int) (domain.Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "GetOrCreateAssessment")
	defer span.End()

	var out domain.Assessment
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		existing, err := tx.GetAssessmentForYear(ctx, barangayID, year)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		created, err := domain.NewAssessment(barangayID, year, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.PutAssessment(ctx, created); err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// Overview returns the assessment with every response, joined for one
// request so callers never chase nullable relations.
type Overview struct {
	Assessment domain.Assessment
	Responses  []domain.Response
}

// GetOverview loads the assessment and all of its responses.
func (s *Service) GetOverview(ctx context.Context, assessmentID string) (Overview, error) {
	var out Overview
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, assessmentID)
		if err != nil {
			return err
		}
		out = Overview{Assessment: a, Responses: responses}
		return nil
	})
	return out, err
}

// loadAssessment maps a missing record to the typed not-found error.
func (s *Service) loadAssessment(ctx context.Context, tx storage.Store, id string) (domain.Assessment, error) {
	a, err := tx.GetAssessment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Assessment{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("assessment %s not found", id),
			map[string]string{"assessment_id": id})
	}
	return a, err
}

func (s *Service) loadResponse(ctx context.Context, tx storage.Store, assessmentID, responseID string) (domain.Response, error) {
	r, err := tx.GetResponse(ctx, responseID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Response{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("response %s not found", responseID),
			map[string]string{"response_id": responseID})
	}
	if err != nil {
		return domain.Response{}, err
	}
	if r.AssessmentID != assessmentID {
		return domain.Response{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("response %s not found", responseID),
			map[string]string{"response_id": responseID, "assessment_id": assessmentID})
	}
	return r, nil
}

// authorize maps a policy denial to the typed permission error.
func authorize(actor domain.Actor, action policy.Action, a domain.Assessment) error {
	if policy.Can(actor, action, a) {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodePermissionDenied,
		fmt.Sprintf("role %s may not perform this operation", actor.Role),
		map[string]string{"role": actor.Role.String()})
}

// requireUnlocked refuses mutations on deadline-frozen assessments.
func requireUnlocked(a domain.Assessment) error {
	if !a.IsLockedForDeadline {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeAssessmentLocked,
		"assessment is locked after a missed correction deadline",
		map[string]string{"assessment_id": a.ID})
}

func statusDisallows(a domain.Assessment, op string) error {
	return apperrors.WithMetadata(apperrors.CodeStatusDisallowsOp,
		fmt.Sprintf("%s is not allowed while the assessment is %s", op, a.Status),
		map[string]string{"status": string(a.Status), "operation": op})
}

// transition applies a workflow transition after checking the table.
func transition(a *domain.Assessment, next domain.Status) error {
	if !a.Status.CanTransition(next) {
		return apperrors.WithMetadata(apperrors.CodeInvalidStatusTransition,
			fmt.Sprintf("cannot move from %s to %s", a.Status, next),
			map[string]string{"from": string(a.Status), "to": string(next)})
	}
	a.Status = next
	return nil
}

// dispatch enqueues post-commit side effects. Failures are logged and
// never surfaced: the transition already committed.
func (s *Service) dispatch(ctx context.Context, list ...jobs.Job) {
	if s.dispatcher == nil {
		return
	}
	for _, job := range list {
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			log.Printf("dispatch %s: %v", job.Key(), err)
		}
	}
}
