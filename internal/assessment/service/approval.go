package service

import (
	"context"
	"strings"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/jobs"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// ApproveFinal closes the cycle. Approving an already-completed
// assessment is a no-op success.
func (s *Service) ApproveFinal(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "ApproveFinal")
	defer span.End()

	var (
		status  domain.Status
		applied bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionApproveFinal, a); err != nil {
			return err
		}
		if a.Status == domain.StatusCompleted {
			return nil
		}
		if a.Status != domain.StatusAwaitingMlgooApproval {
			return statusDisallows(a, "final approval")
		}

		if err := transition(&a, domain.StatusCompleted); err != nil {
			return err
		}
		now := s.clock().UTC()
		a.CompletedAt = &now
		a.UpdatedAt = now
		status = a.Status
		applied = true
		return tx.PutAssessment(ctx, a)
	})
	res, err := resultFromError(err, status)
	if err == nil && res.Success && applied {
		s.dispatch(ctx,
			jobs.Job{Name: jobs.JobNotifyApproval, AssessmentID: assessmentID},
			jobs.Job{Name: jobs.JobGenerateInsights, AssessmentID: assessmentID},
		)
	}
	return res, err
}

// RequestMlgooRecalibration reopens the named responses of a completed
// assessment for one final correction round. Neither rework_count nor
// the calibrated-area set is touched.
func (s *Service) RequestMlgooRecalibration(ctx context.Context, actor domain.Actor, assessmentID string, responseIDs []string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "RequestMlgooRecalibration")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionRequestRecalibration, a); err != nil {
			return err
		}
		if a.Status != domain.StatusCompleted {
			return statusDisallows(a, "recalibration request")
		}
		if a.MlgooRecalibrationCount > 0 {
			return apperrors.New(apperrors.CodeRecalibrationUsed,
				"the single post-approval recalibration has already been used")
		}
		if len(responseIDs) == 0 {
			return apperrors.New(apperrors.CodeRecalibrationEmpty,
				"recalibration must name at least one response to reopen")
		}

		now := s.clock().UTC()
		var missing []string
		for _, responseID := range responseIDs {
			r, err := s.loadResponse(ctx, tx, assessmentID, responseID)
			if err != nil {
				if apperrors.IsCode(err, apperrors.CodeNotFound) {
					missing = append(missing, responseID)
					continue
				}
				return err
			}
			r.RequiresRework = true
			r.IsCompleted = false
			r.ClearValidation()
			r.LastCycleStartedAt = &now
			r.UpdatedAt = now
			if err := tx.PutResponse(ctx, r); err != nil {
				return err
			}
		}
		if len(missing) > 0 {
			return apperrors.WithMetadata(apperrors.CodeNotFound,
				"recalibration names unknown responses",
				map[string]string{"response_ids": strings.Join(missing, ",")})
		}

		a.MlgooRecalibrationCount = 1
		// COMPLETED has no table entry; the recalibration reopening is
		// the one sanctioned exception.
		a.Status = domain.StatusRework
		deadline := now.Add(s.window)
		a.GracePeriodExpiresAt = &deadline
		a.UpdatedAt = now
		status = a.Status
		return tx.PutAssessment(ctx, a)
	})
	res, err := resultFromError(err, status)
	if err == nil && res.Success {
		s.dispatch(ctx, jobs.Job{Name: jobs.JobNotifyRecalibration, AssessmentID: assessmentID})
	}
	return res, err
}
