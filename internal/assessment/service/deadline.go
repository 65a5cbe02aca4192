package service

import (
	"context"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// LockExpired freezes every assessment whose correction window lapsed
// without a resubmission and returns the locked ids. The worker's
// deadline sweeper calls this on a schedule.
func (s *Service) LockExpired(ctx context.Context, now time.Time) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "LockExpired")
	defer span.End()

	var locked []string
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		expired, err := tx.ListAssessmentsPastDeadline(ctx, now)
		if err != nil {
			return err
		}
		for i := range expired {
			a := &expired[i]
			a.IsLockedForDeadline = true
			a.UpdatedAt = now.UTC()
			if err := tx.PutAssessment(ctx, *a); err != nil {
				return err
			}
			locked = append(locked, a.ID)
		}
		return nil
	})
	return locked, err
}

// LockForDeadline manually freezes one assessment whose window lapsed.
func (s *Service) LockForDeadline(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "LockForDeadline")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionAdministerDeadline, a); err != nil {
			return err
		}
		if a.GracePeriodExpiresAt == nil {
			return apperrors.New(apperrors.CodeDeadlineLockMissing,
				"assessment has no correction deadline to enforce")
		}
		now := s.clock().UTC()
		if !a.DeadlineExpired(now) {
			return apperrors.WithMetadata(apperrors.CodeDeadlineNotExpired,
				"the correction window has not lapsed yet",
				map[string]string{"expires_at": a.GracePeriodExpiresAt.Format(time.RFC3339)})
		}
		a.IsLockedForDeadline = true
		a.UpdatedAt = now
		return tx.PutAssessment(ctx, a)
	})
	return resultFromError(err, status)
}

// ClearDeadlineLock is the administrative override releasing a
// deadline-frozen assessment and granting a fresh correction window.
func (s *Service) ClearDeadlineLock(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "ClearDeadlineLock")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionAdministerDeadline, a); err != nil {
			return err
		}
		if !a.IsLockedForDeadline {
			return apperrors.New(apperrors.CodeDeadlineLockMissing,
				"assessment is not locked for a deadline")
		}
		now := s.clock().UTC()
		a.IsLockedForDeadline = false
		deadline := now.Add(s.window)
		a.GracePeriodExpiresAt = &deadline
		a.UpdatedAt = now
		return tx.PutAssessment(ctx, a)
	})
	return resultFromError(err, status)
}
