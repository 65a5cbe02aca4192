package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/compliance"
	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/jobs"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// AreaValidated is the per-area marker recorded when a validator
// finishes their governance area.
const AreaValidated = "validated"

// Finalize concludes the caller's review phase. Assessors close the
// table review and hand the assessment to the validators; validators
// close their own governance area, and the validator whose area
// completes the set triggers the compliance aggregation.
func (s *Service) Finalize(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "Finalize")
	defer span.End()

	switch actor.Role {
	case domain.RoleAssessor, domain.RoleAdmin:
		return s.finalizeAssessor(ctx, actor, assessmentID)
	case domain.RoleValidator:
		return s.finalizeValidation(ctx, actor, assessmentID)
	default:
		return OpResult{}, apperrors.WithMetadata(apperrors.CodePermissionDenied,
			fmt.Sprintf("role %s may not finalize", actor.Role),
			map[string]string{"role": actor.Role.String()})
	}
}

// finalizeAssessor moves the assessment to final validation once every
// response carries assessor checklist data or a feedback comment.
func (s *Service) finalizeAssessor(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionFinalizeAssessor, a); err != nil {
			return err
		}
		if !a.Status.IsSubmittedPhase() && a.Status != domain.StatusRework {
			return statusDisallows(a, "assessor finalize")
		}

		responses, err := tx.ListResponses(ctx, assessmentID)
		if err != nil {
			return err
		}
		var unreviewed []string
		for _, r := range responses {
			if !r.HasChecklistData(domain.RoleAssessor) && r.FeedbackComment == "" {
				unreviewed = append(unreviewed, r.IndicatorID)
			}
		}
		if len(unreviewed) > 0 {
			return apperrors.WithMetadata(apperrors.CodeChecklistMissing,
				"every response needs assessor checklist data or a feedback comment",
				map[string]string{"indicator_ids": strings.Join(unreviewed, ",")})
		}

		now := s.clock().UTC()
		for i := range responses {
			r := &responses[i]
			if !r.RequiresRework {
				continue
			}
			// assessor satisfaction implied
			r.RequiresRework = false
			if err := s.recomputeCompleteness(ctx, tx, a, r); err != nil {
				return err
			}
			r.UpdatedAt = now
			if err := tx.PutResponse(ctx, *r); err != nil {
				return err
			}
		}

		if err := transition(&a, domain.StatusAwaitingFinalValidation); err != nil {
			return err
		}
		for _, r := range responses {
			a.AreaAssessorApproved[r.AreaID] = true
		}
		a.UpdatedAt = now
		status = a.Status
		return tx.PutAssessment(ctx, a)
	})
	res, err := resultFromError(err, status)
	if err == nil && res.Success {
		s.dispatch(ctx, jobs.Job{Name: jobs.JobNotifyValidation, AssessmentID: assessmentID})
	}
	return res, err
}

// finalizeValidation closes the caller's governance area. Whether all
// areas are now validated is re-read inside the transaction immediately
// before commit, so two validators finishing concurrently cannot both
// miss (or both trigger) the final transition.
func (s *Service) finalizeValidation(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	areaID := actor.AreaID
	var (
		status    domain.Status
		completed bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionFinalizeValidation, a); err != nil {
			return err
		}
		if !domain.ValidAreaID(areaID) {
			return apperrors.WithMetadata(apperrors.CodeValidatorAreaMismatch,
				fmt.Sprintf("validator has no governance area (%d)", areaID),
				map[string]string{"area_id": fmt.Sprint(areaID)})
		}
		if a.Status != domain.StatusAwaitingFinalValidation && a.Status != domain.StatusRework {
			return statusDisallows(a, "validator finalize")
		}
		if a.Status == domain.StatusRework && !a.AreaUnderActiveCalibration(areaID) && a.IsCalibrationRework {
			return apperrors.WithMetadata(apperrors.CodeCalibrationNotRequested,
				fmt.Sprintf("governance area %d has no open calibration", areaID),
				map[string]string{"area_id": fmt.Sprint(areaID)})
		}

		areaResponses, err := tx.ListAreaResponses(ctx, assessmentID, areaID)
		if err != nil {
			return err
		}
		var unvalidated []string
		for _, r := range areaResponses {
			if r.ValidationStatus == nil {
				unvalidated = append(unvalidated, r.IndicatorID)
			}
		}
		if len(unvalidated) > 0 {
			return apperrors.WithMetadata(apperrors.CodeAreaNotValidated,
				fmt.Sprintf("governance area %d still has unvalidated responses", areaID),
				map[string]string{
					"area_id":       fmt.Sprint(areaID),
					"indicator_ids": strings.Join(unvalidated, ","),
				})
		}

		now := s.clock().UTC()
		a.AreaSubmissionStatus[areaID] = AreaValidated

		// Commit-time re-read across every area decides the transition.
		all, err := tx.ListResponses(ctx, assessmentID)
		if err != nil {
			return err
		}
		allValidated := true
		for _, r := range all {
			if r.ValidationStatus == nil {
				allValidated = false
				break
			}
		}
		if allValidated {
			if a.Status == domain.StatusRework {
				if err := transition(&a, domain.StatusAwaitingFinalValidation); err != nil {
					return err
				}
			}
			if err := transition(&a, domain.StatusAwaitingMlgooApproval); err != nil {
				return err
			}
			if err := s.applyAggregation(ctx, tx, &a, all, now); err != nil {
				return err
			}
			completed = true
		}
		a.UpdatedAt = now
		status = a.Status
		return tx.PutAssessment(ctx, a)
	})
	res, err := resultFromError(err, status)
	if err == nil && res.Success {
		dispatched := []jobs.Job{{Name: jobs.JobNotifyValidation, AssessmentID: assessmentID, AreaID: areaID}}
		if completed {
			dispatched = append(dispatched, jobs.Job{Name: jobs.JobGenerateInsights, AssessmentID: assessmentID})
		}
		s.dispatch(ctx, dispatched...)
	}
	return res, err
}

// applyAggregation runs the "3+1" aggregation, the functionality
// classifier, and remark generation over every response. Results are
// overwritten in full so repeated finalization stays idempotent.
func (s *Service) applyAggregation(ctx context.Context, tx storage.Store, a *domain.Assessment, responses []domain.Response, now time.Time) error {
	verdictsByArea := make(map[int][]domain.ValidationStatus)
	passed, total := 0, 0
	for _, r := range responses {
		if r.ValidationStatus == nil {
			continue
		}
		verdictsByArea[r.AreaID] = append(verdictsByArea[r.AreaID], *r.ValidationStatus)
		total++
		if *r.ValidationStatus != domain.ValidationFail {
			passed++
		}
	}

	agg := compliance.AggregateAreas(verdictsByArea)
	a.FinalComplianceStatus = agg.Overall
	a.AreaResults = agg.AreaResults
	a.InstitutionFunctionality = string(compliance.ClassifyFunctionality(passed, total))

	for i := range responses {
		r := &responses[i]
		ind, err := s.snapshots.Indicator(ctx, tx, a.ID, r.IndicatorID)
		if err != nil {
			return err
		}
		if ind.Calculation.IsZero() {
			continue
		}
		outcome, err := compliance.EvaluateSchema(ind.Calculation, r.Data)
		if err != nil {
			return err
		}
		r.GeneratedRemark = outcome.Remark
		r.UpdatedAt = now
		if err := tx.PutResponse(ctx, *r); err != nil {
			return err
		}
	}
	return nil
}
