package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/policy"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/jobs"
	"github.com/generyand/sinag-sub000/internal/storage"
)

// RequestRework sends the submission back to the submitter for the
// single table-wide correction round. Responses named explicitly or
// carrying assessor annotations are reopened.
func (s *Service) RequestRework(ctx context.Context, actor domain.Actor, assessmentID string, responseIDs []string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "RequestRework")
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
		if !a.Status.IsSubmittedPhase() {
			return statusDisallows(a, "rework request")
		}
		if a.ReworkCount > 0 {
			return apperrors.WithMetadata(apperrors.CodeReworkAlreadyUsed,
				"the single rework round has already been used",
				map[string]string{"assessment_id": a.ID})
		}

		responses, err := tx.ListResponses(ctx, assessmentID)
		if err != nil {
			return err
		}
		explicit := make(map[string]bool, len(responseIDs))
		for _, id := range responseIDs {
			explicit[id] = true
		}

		now := s.clock().UTC()
		flagged := 0
		for i := range responses {
			r := &responses[i]
			if !explicit[r.ID] && !r.HasChecklistData(domain.RoleAssessor) {
				continue
			}
			delete(explicit, r.ID)
			flagged++
			r.RequiresRework = true
			r.IsCompleted = false
			r.ClearValidation()
			r.ClearRoleChecklist(domain.RoleAssessor)
			r.LastCycleStartedAt = &now
			r.UpdatedAt = now
			if err := tx.PutResponse(ctx, *r); err != nil {
				return err
			}
		}
		if len(explicit) > 0 {
			ids := make([]string, 0, len(explicit))
			for id := range explicit {
				ids = append(ids, id)
			}
			return apperrors.WithMetadata(apperrors.CodeNotFound,
				"rework request names unknown responses",
				map[string]string{"response_ids": strings.Join(ids, ",")})
		}
		if flagged == 0 {
			return apperrors.New(apperrors.CodeReworkNeedsFlags,
				"rework requires at least one annotated or explicitly flagged response")
		}

		if err := transition(&a, domain.StatusRework); err != nil {
			return err
		}
		a.ReworkCount = 1
		a.ReworkRequestedBy = actor.UserID
		a.ReworkRequestedAt = &now
		deadline := now.Add(s.window)
		a.GracePeriodExpiresAt = &deadline
		a.UpdatedAt = now
		status = a.Status
		return tx.PutAssessment(ctx, a)
	})
	res, err := resultFromError(err, status)
	if err == nil && res.Success {
		s.dispatch(ctx,
			jobs.Job{Name: jobs.JobGenerateReworkSummary, AssessmentID: assessmentID},
			jobs.Job{Name: jobs.JobNotifyRework, AssessmentID: assessmentID},
		)
	}
	return res, err
}

// RequestCalibration opens the caller's single calibration round for
// their governance area. The first calibration in an assessment moves
// it to rework; concurrent requests from other validators append
// without re-transitioning.
func (s *Service) RequestCalibration(ctx context.Context, actor domain.Actor, assessmentID string) (OpResult, error) {
	ctx, span := s.tracer.Start(ctx, "RequestCalibration")
	defer span.End()

	areaID := actor.AreaID
	var status domain.Status
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		a, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		status = a.Status
		if err := authorize(actor, policy.ActionRequestCalibration, a); err != nil {
			return err
		}
		if !domain.ValidAreaID(areaID) {
			return apperrors.WithMetadata(apperrors.CodeCalibrationAreaUnknown,
				fmt.Sprintf("governance area %d does not exist", areaID),
				map[string]string{"area_id": fmt.Sprint(areaID)})
		}
		if a.Status != domain.StatusAwaitingFinalValidation && a.Status != domain.StatusRework {
			return statusDisallows(a, "calibration request")
		}
		if a.HasCalibratedArea(areaID) {
			return apperrors.WithMetadata(apperrors.CodeAreaAlreadyCalibrated,
				fmt.Sprintf("governance area %d has used its calibration round", areaID),
				map[string]string{"area_id": fmt.Sprint(areaID)})
		}
		if a.HasUnapprovedCalibration(actor.UserID, areaID) {
			return apperrors.WithMetadata(apperrors.CodeCalibrationPending,
				"a calibration request for this area is already pending",
				map[string]string{"area_id": fmt.Sprint(areaID)})
		}

		areaResponses, err := tx.ListAreaResponses(ctx, assessmentID, areaID)
		if err != nil {
			return err
		}
		now := s.clock().UTC()
		flagged := 0
		for i := range areaResponses {
			r := &areaResponses[i]
			changed := false
			if r.FlaggedForCalibration {
				flagged++
				r.FlaggedForCalibration = false
				r.RequiresRework = true
				r.IsCompleted = false
				r.LastCycleStartedAt = &now
				changed = true
			}
			if r.HasChecklistData(domain.RoleValidator) {
				r.ClearRoleChecklist(domain.RoleValidator)
				changed = true
			}
			if changed {
				r.UpdatedAt = now
				if err := tx.PutResponse(ctx, *r); err != nil {
					return err
				}
			}
		}
		if flagged == 0 {
			return apperrors.WithMetadata(apperrors.CodeCalibrationNeedsFlags,
				"calibration requires at least one flagged response in the area",
				map[string]string{"area_id": fmt.Sprint(areaID)})
		}

		a.PendingCalibrations = append(a.PendingCalibrations, domain.PendingCalibration{
			ValidatorID: actor.UserID,
			AreaID:      areaID,
			RequestedAt: now,
		})
		a.AddCalibratedArea(areaID)
		if a.Status != domain.StatusRework {
			if err := transition(&a, domain.StatusRework); err != nil {
				return err
			}
		}
		a.IsCalibrationRework = true
		deadline := now.Add(s.window)
		a.GracePeriodExpiresAt = &deadline
		a.UpdatedAt = now
		status = a.Status
		return tx.PutAssessment(ctx, a)
	})
	res, err := resultFromError(err, status)
	if err == nil && res.Success {
		s.dispatch(ctx,
			jobs.Job{Name: jobs.JobGenerateCalibrationSummary, AssessmentID: assessmentID, AreaID: areaID},
			jobs.Job{Name: jobs.JobNotifyCalibration, AssessmentID: assessmentID, AreaID: areaID},
		)
	}
	return res, err
}
