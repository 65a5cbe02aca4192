package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/completeness"
	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/evidence"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// SaveResponse upserts one indicator's answer and synchronously
// recomputes its completeness. The cached is_completed flag is never
// left stale across a transaction boundary.
func (s *Service) SaveResponse(ctx context.Context, actor domain.Actor, assessmentID, indicatorID string, data map[string]any) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "SaveResponse")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionEditResponses, a); err != nil {
			return err
		}

		r, err := tx.GetResponseByIndicator(ctx, assessmentID, indicatorID)
		if errors.Is(err, storage.ErrNotFound) {
			created, err := s.newResponse(ctx, tx, a, indicatorID)
			if err != nil {
				return err
			}
			r = created
		} else if err != nil {
			return err
		}
		if err := s.requireEditable(a, &r); err != nil {
			return err
		}

		r.Data = data
		r.UpdatedAt = s.clock().UTC()
		if err := s.recomputeCompleteness(ctx, tx, a, &r); err != nil {
			return err
		}
		return tx.PutResponse(ctx, r)
	})
	return resultFromError(err, status)
}

// UploadEvidence attaches one proof file to a response and recomputes
// completeness with the new descriptor visible.
func (s *Service) UploadEvidence(ctx context.Context, actor domain.Actor, assessmentID, responseID, section string, contents []byte) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "UploadEvidence")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionEditResponses, a); err != nil {
			return err
		}
		r, err := s.loadResponse(ctx, tx, assessmentID, responseID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(a, &r); err != nil {
			return err
		}

		repo := evidence.NewStoreRepositoryWithClock(tx, s.clock, nil)
		if _, err := repo.AddEvidence(ctx, responseID, section, contents); err != nil {
			return err
		}

		r.UpdatedAt = s.clock().UTC()
		if err := s.recomputeCompleteness(ctx, tx, a, &r); err != nil {
			return err
		}
		return tx.PutResponse(ctx, r)
	})
	return resultFromError(err, status)
}

// DeleteEvidence removes one proof file and recomputes completeness of
// the response it backed.
func (s *Service) DeleteEvidence(ctx context.Context, actor domain.Actor, assessmentID, evidenceID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "DeleteEvidence")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionEditResponses, a); err != nil {
			return err
		}

		d, err := tx.GetEvidence(ctx, evidenceID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("evidence %s not found", evidenceID),
				map[string]string{"evidence_id": evidenceID})
		}
		if err != nil {
			return err
		}
		r, err := s.loadResponse(ctx, tx, assessmentID, d.ResponseID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(a, &r); err != nil {
			return err
		}

		repo := evidence.NewStoreRepositoryWithClock(tx, s.clock, nil)
		if err := repo.RemoveEvidence(ctx, evidenceID); err != nil {
			return err
		}

		r.UpdatedAt = s.clock().UTC()
		if err := s.recomputeCompleteness(ctx, tx, a, &r); err != nil {
			return err
		}
		return tx.PutResponse(ctx, r)
	})
	return resultFromError(err, status)
}

// ReviewResponse records assessor annotations on one response: merged
// checklist entries in the assessor namespace plus a feedback comment.
func (s *Service) ReviewResponse(ctx context.Context, actor domain.Actor, assessmentID, responseID string, checklist map[string]any, feedback string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewResponse")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionRequestRework, a); err != nil {
			return err
		}
		if !a.Status.IsSubmittedPhase() && a.Status != domain.StatusRework {
			return statusDisallows(a, "assessor review")
		}
		r, err := s.loadResponse(ctx, tx, assessmentID, responseID)
		if err != nil {
			return err
		}

		entries := r.RoleChecklist(domain.RoleAssessor)
		for k, v := range checklist {
			entries[k] = v
		}
		if feedback != "" {
			r.FeedbackComment = feedback
		}
		r.UpdatedAt = s.clock().UTC()
		return tx.PutResponse(ctx, r)
	})
	return resultFromError(err, status)
}

// ValidateResponse records a validator verdict on one response in the
// caller's governance area, optionally flagging it for calibration.
func (s *Service) ValidateResponse(ctx context.Context, actor domain.Actor, assessmentID, responseID string, verdict domain.ValidationStatus, checklist map[string]any, flagForCalibration bool) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "ValidateResponse")
	defer span.End()

	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionFinalizeValidation, a); err != nil {
			return err
		}
		if a.Status != domain.StatusAwaitingFinalValidation && a.Status != domain.StatusRework {
			return statusDisallows(a, "validation")
		}
		r, err := s.loadResponse(ctx, tx, assessmentID, responseID)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleValidator && actor.AreaID != r.AreaID {
			return apperrors.WithMetadata(apperrors.CodeValidatorAreaMismatch,
				fmt.Sprintf("validator for area %d cannot validate area %d", actor.AreaID, r.AreaID),
				map[string]string{
					"validator_area": fmt.Sprint(actor.AreaID),
					"response_area":  fmt.Sprint(r.AreaID),
				})
		}
		if _, err := domain.ParseValidationStatus(string(verdict)); err != nil {
			return apperrors.Wrap(apperrors.CodeSchemaTypeMismatch, "invalid validation status", err)
		}

		r.ValidationStatus = &verdict
		r.FlaggedForCalibration = flagForCalibration
		entries := r.RoleChecklist(domain.RoleValidator)
		for k, v := range checklist {
			entries[k] = v
		}
		r.UpdatedAt = s.clock().UTC()
		return tx.PutResponse(ctx, r)
	})
	return resultFromError(err, status)
}

// newResponse lazily creates the response record for an indicator,
// resolving its governance area through the snapshot service.
func (s *Service) newResponse(ctx context.Context, tx storage.Store, a domain.Assessment, indicatorID string) (domain.Response, error) {
	ind, err := s.snapshots.Indicator(ctx, tx, a.ID, indicatorID)
	if err != nil {
		return domain.Response{}, err
	}
	return domain.NewResponse(a.ID, indicatorID, ind.AreaID, s.clock, s.idGenerator)
}

// requireEditable guards submitter mutations: drafts are always open;
// during a rework only responses reopened for the current cycle may
// change. Ghost-rework suppression applies, so stale flags from an
// earlier phase never reopen unrelated areas.
func (s *Service) requireEditable(a domain.Assessment, r *domain.Response) error {
	if err := requireUnlocked(a); err != nil {
		return err
	}
	switch a.Status {
	case domain.StatusDraft:
		return nil
	case domain.StatusRework:
		if r != nil && domain.EffectiveRequiresRework(*r, a) {
			return nil
		}
		return apperrors.WithMetadata(apperrors.CodeReworkNotRequested,
			"response is not reopened for the current correction cycle",
			map[string]string{"assessment_id": a.ID})
	default:
		return apperrors.WithMetadata(apperrors.CodeAssessmentNotEditable,
			fmt.Sprintf("responses cannot change while the assessment is %s", a.Status),
			map[string]string{"status": string(a.Status)})
	}
}

// recomputeCompleteness refreshes the cached is_completed flag from the
// completeness engine, using the frozen indicator definition when one
// exists.
func (s *Service) recomputeCompleteness(ctx context.Context, tx storage.Store, a domain.Assessment, r *domain.Response) error {
	ind, err := s.snapshots.Indicator(ctx, tx, a.ID, r.IndicatorID)
	if err != nil {
		return err
	}
	descriptors, err := tx.ListEvidence(ctx, r.ID)
	if err != nil {
		return err
	}
	var cutoff time.Time
	if domain.EffectiveRequiresRework(*r, a) && r.LastCycleStartedAt != nil {
		cutoff = *r.LastCycleStartedAt
	}
	result := completeness.Evaluate(ind.Form, r.Data, descriptors, cutoff)
	r.IsCompleted = result.IsComplete
	return nil
}
