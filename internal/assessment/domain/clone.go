package domain

import "time"

// Clone returns a deep copy of the assessment so callers can mutate it
// without aliasing stored state.
func (a Assessment) Clone() Assessment {
	out := a
	out.ReworkRequestedAt = cloneTime(a.ReworkRequestedAt)
	out.GracePeriodExpiresAt = cloneTime(a.GracePeriodExpiresAt)
	out.FirstSubmittedAt = cloneTime(a.FirstSubmittedAt)
	out.SubmittedAt = cloneTime(a.SubmittedAt)
	out.CompletedAt = cloneTime(a.CompletedAt)

	out.CalibratedAreaIDs = append([]int(nil), a.CalibratedAreaIDs...)
	out.PendingCalibrations = append([]PendingCalibration(nil), a.PendingCalibrations...)

	out.AreaSubmissionStatus = make(map[int]string, len(a.AreaSubmissionStatus))
	for k, v := range a.AreaSubmissionStatus {
		out.AreaSubmissionStatus[k] = v
	}
	out.AreaAssessorApproved = make(map[int]bool, len(a.AreaAssessorApproved))
	for k, v := range a.AreaAssessorApproved {
		out.AreaAssessorApproved[k] = v
	}
	out.AreaResults = make(map[string]string, len(a.AreaResults))
	for k, v := range a.AreaResults {
		out.AreaResults[k] = v
	}
	return out
}

// Clone returns a deep copy of the response.
func (r Response) Clone() Response {
	out := r
	out.LastCycleStartedAt = cloneTime(r.LastCycleStartedAt)
	if r.ValidationStatus != nil {
		status := *r.ValidationStatus
		out.ValidationStatus = &status
	}
	out.Data = cloneAnyMap(r.Data)
	out.Checklist = make(map[Role]map[string]any, len(r.Checklist))
	for role, entries := range r.Checklist {
		out.Checklist[role] = cloneAnyMap(entries)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

// cloneAnyMap copies one level of nesting, which covers the shapes the
// form schemas produce (scalars and flat arrays).
func cloneAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if slice, ok := v.([]any); ok {
			out[k] = append([]any(nil), slice...)
			continue
		}
		out[k] = v
	}
	return out
}
