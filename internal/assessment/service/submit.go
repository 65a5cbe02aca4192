package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/completeness"
	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/jobs"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// Submit files the assessment for review. The precheck enumerates every
// offending response in one pass; a single failure never hides the
// rest. The first submission freezes indicator snapshots; a
// resubmission satisfies every outstanding rework and calibration flag
// at once.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "Submit")
	defer span.End()

	var (
		status   domain.Status
		refusals []OpError
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionSubmit, a); err != nil {
			return err
		}
		if err := requireUnlocked(a); err != nil {
			return err
		}
		if a.Status != domain.StatusDraft && a.Status != domain.StatusRework {
			return statusDisallows(a, "submit")
		}

		responses, err := tx.ListResponses(ctx, assessmentID)
		if err != nil {
			return err
		}

		refusals, err = s.precheck(ctx, tx, a, responses)
		if err != nil {
			return err
		}
		if len(refusals) > 0 {
			return errPrecheckFailed
		}

		now := s.clock().UTC()
		for i := range responses {
			r := &responses[i]
			if !r.RequiresRework {
				continue
			}
			r.RequiresRework = false
			r.ClearValidation()
			r.ClearRoleChecklist(domain.RoleAssessor)
			r.UpdatedAt = now
			if err := tx.PutResponse(ctx, *r); err != nil {
				return err
			}
		}

		next, err := s.resubmissionTarget(&a)
		if err != nil {
			return err
		}
		if err := transition(&a, next); err != nil {
			return err
		}

		if a.FirstSubmittedAt == nil {
			a.FirstSubmittedAt = &now
			ids := s.catalog.IndicatorIDs()
			if _, err := s.snapshots.Freeze(ctx, tx, a.ID, ids, a.Year); err != nil {
				return err
			}
		}
		a.SubmittedAt = &now
		a.GracePeriodExpiresAt = nil
		a.UpdatedAt = now
		status = a.Status
		return tx.PutAssessment(ctx, a)
	})
	if err == errPrecheckFailed {
		return refusal(status, refusals...), nil
	}
	res, err := resultFromError(err, status)
	if err == nil && res.Success {
		s.dispatch(ctx, jobs.Job{Name: jobs.JobNotifySubmission, AssessmentID: assessmentID})
	}
	return res, err
}

// errPrecheckFailed is an internal sentinel aborting the transaction
// when the submission precheck collected refusals.
var errPrecheckFailed = errors.New("submission precheck failed")

// precheck runs the completeness engine over every response and
// collects one structured refusal per offender. The cached is_completed
// flag is refreshed in place so the caller persists the engine's
// current verdict, not the value a rework request forced.
func (s *Service) precheck(ctx context.Context, tx storage.Store, a domain.Assessment, responses []domain.Response) ([]OpError, error) {
	var out []OpError
	for i := range responses {
		r := &responses[i]
		ind, err := s.snapshots.Indicator(ctx, tx, a.ID, r.IndicatorID)
		if err != nil {
			return nil, err
		}
		descriptors, err := tx.ListEvidence(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		var cutoff time.Time
		if domain.EffectiveRequiresRework(*r, a) && r.LastCycleStartedAt != nil {
			cutoff = *r.LastCycleStartedAt
		}
		result := completeness.Evaluate(ind.Form, r.Data, descriptors, cutoff)
		r.IsCompleted = result.IsComplete
		if result.IsComplete {
			continue
		}

		evidenceMissing := make(map[string]bool, len(result.MissingEvidence))
		for _, field := range result.MissingEvidence {
			evidenceMissing[field] = true
		}
		var incomplete []string
		for _, field := range result.MissingFields {
			if !evidenceMissing[field] {
				incomplete = append(incomplete, field)
			}
		}

		if len(result.MissingEvidence) > 0 {
			out = append(out, OpError{
				Code:    apperrors.CodeMissingEvidence,
				Message: "affirmative answers require at least one evidence file",
				Metadata: map[string]string{
					"indicator_id": r.IndicatorID,
					"sections":     strings.Join(result.MissingEvidence, ","),
				},
			})
		}
		if len(incomplete) > 0 {
			out = append(out, OpError{
				Code:    apperrors.CodeResponseIncomplete,
				Message: "response has missing or invalid fields",
				Metadata: map[string]string{
					"indicator_id":   r.IndicatorID,
					"missing_fields": strings.Join(incomplete, ","),
				},
			})
		}
	}
	return out, nil
}

// resubmissionTarget picks the status a submission moves to. A pure
// calibration resubmission returns straight to final validation; when
// the phase-1 rework is still unresolved the assessment goes back
// through assessor review; a recalibration resubmission re-enters final
// validation.
func (s *Service) resubmissionTarget(a *domain.Assessment) (domain.Status, error) {
	if a.Status == domain.StatusDraft {
		return domain.StatusSubmitted, nil
	}

	phase1Pending := a.ReworkRequestedAt != nil &&
		(a.SubmittedAt == nil || a.ReworkRequestedAt.After(*a.SubmittedAt))

	if a.IsCalibrationRework {
		a.ApproveAllCalibrations()
		a.IsCalibrationRework = false
		if phase1Pending {
			return domain.StatusSubmitted, nil
		}
		return domain.StatusAwaitingFinalValidation, nil
	}
	if a.MlgooRecalibrationCount > 0 && a.CompletedAt != nil {
		return domain.StatusAwaitingFinalValidation, nil
	}
	return domain.StatusSubmitted, nil
}
