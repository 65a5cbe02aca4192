package domain

import (
	"fmt"
	"sort"
	"time"
)

// ComplianceStatus is the overall outcome of a finished assessment.
type ComplianceStatus string

const (
	CompliancePassed ComplianceStatus = "PASSED"
	ComplianceFailed ComplianceStatus = "FAILED"
)

// PendingCalibration records one validator's unresolved calibration
// request for one governance area.
type PendingCalibration struct {
	ValidatorID string    `json:"validator_id"`
	AreaID      int       `json:"area_id"`
	RequestedAt time.Time `json:"requested_at"`
	Approved    bool      `json:"approved"`
}

// Assessment is one barangay's assessment record for one cycle year.
// Exactly one record exists per (barangay, year); it is created on first
// access and never hard-deleted.
type Assessment struct {
	ID         string
	BarangayID string
	Year       int
	Status     Status

	ReworkCount       int
	ReworkRequestedBy string
	ReworkRequestedAt *time.Time

	IsCalibrationRework bool
	CalibratedAreaIDs   []int
	PendingCalibrations []PendingCalibration

	MlgooRecalibrationCount int

	GracePeriodExpiresAt *time.Time
	IsLockedForDeadline  bool

	AreaSubmissionStatus map[int]string
	AreaAssessorApproved map[int]bool

	FinalComplianceStatus ComplianceStatus
	AreaResults           map[string]string

	// InstitutionFunctionality is the 4-tier classification recomputed
	// and overwritten on every finalize that completes validation.
	InstitutionFunctionality string

	FirstSubmittedAt *time.Time
	SubmittedAt      *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAssessment creates the single record for a (barangay, year) pair.
func NewAssessment(barangayID string, year int, now func() time.Time, idGenerator func() (string, error)) (Assessment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = NewID
	}
	if barangayID == "" {
		return Assessment{}, fmt.Errorf("barangay id is required")
	}
	if year <= 0 {
		return Assessment{}, fmt.Errorf("cycle year is required")
	}

	id, err := idGenerator()
	if err != nil {
		return Assessment{}, fmt.Errorf("generate assessment id: %w", err)
	}
	createdAt := now().UTC()
	return Assessment{
		ID:                   id,
		BarangayID:           barangayID,
		Year:                 year,
		Status:               StatusDraft,
		AreaSubmissionStatus: make(map[int]string),
		AreaAssessorApproved: make(map[int]bool),
		AreaResults:          make(map[string]string),
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}, nil
}

// CheckInvariants verifies the record-level invariants that must hold
// after every mutation.
func (a Assessment) CheckInvariants() error {
	if a.ReworkCount < 0 || a.ReworkCount > 1 {
		return fmt.Errorf("rework count %d out of range", a.ReworkCount)
	}
	if a.MlgooRecalibrationCount < 0 || a.MlgooRecalibrationCount > 1 {
		return fmt.Errorf("mlgoo recalibration count %d out of range", a.MlgooRecalibrationCount)
	}
	if len(a.CalibratedAreaIDs) > 6 {
		return fmt.Errorf("calibrated area set has %d entries", len(a.CalibratedAreaIDs))
	}
	seen := make(map[int]struct{}, len(a.CalibratedAreaIDs))
	for _, areaID := range a.CalibratedAreaIDs {
		if !ValidAreaID(areaID) {
			return fmt.Errorf("calibrated area id %d out of range", areaID)
		}
		if _, dup := seen[areaID]; dup {
			return fmt.Errorf("calibrated area id %d duplicated", areaID)
		}
		seen[areaID] = struct{}{}
	}
	return nil
}

// HasCalibratedArea reports whether areaID has used its calibration round.
func (a Assessment) HasCalibratedArea(areaID int) bool {
	for _, id := range a.CalibratedAreaIDs {
		if id == areaID {
			return true
		}
	}
	return false
}

// AddCalibratedArea records areaID into the calibrated set, keeping the
// set deduplicated and sorted.
func (a *Assessment) AddCalibratedArea(areaID int) {
	if a.HasCalibratedArea(areaID) {
		return
	}
	a.CalibratedAreaIDs = append(a.CalibratedAreaIDs, areaID)
	sort.Ints(a.CalibratedAreaIDs)
}

// HasUnapprovedCalibration reports whether the validator already has an
// open calibration request for the area.
func (a Assessment) HasUnapprovedCalibration(validatorID string, areaID int) bool {
	for _, pc := range a.PendingCalibrations {
		if pc.ValidatorID == validatorID && pc.AreaID == areaID && !pc.Approved {
			return true
		}
	}
	return false
}

// HasAnyUnapprovedCalibration reports whether any calibration request is
// still open.
func (a Assessment) HasAnyUnapprovedCalibration() bool {
	for _, pc := range a.PendingCalibrations {
		if !pc.Approved {
			return true
		}
	}
	return false
}

// ActiveCalibrationAreas lists the governance areas with an open
// (unapproved) calibration request, deduplicated and sorted.
func (a Assessment) ActiveCalibrationAreas() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, pc := range a.PendingCalibrations {
		if pc.Approved {
			continue
		}
		if _, ok := seen[pc.AreaID]; ok {
			continue
		}
		seen[pc.AreaID] = struct{}{}
		out = append(out, pc.AreaID)
	}
	sort.Ints(out)
	return out
}

// AreaUnderActiveCalibration reports whether areaID has an open
// calibration request.
func (a Assessment) AreaUnderActiveCalibration(areaID int) bool {
	for _, pc := range a.PendingCalibrations {
		if !pc.Approved && pc.AreaID == areaID {
			return true
		}
	}
	return false
}

// ApproveAllCalibrations marks every pending calibration entry approved.
// The submitter's single resubmission satisfies all outstanding requests
// at once.
func (a *Assessment) ApproveAllCalibrations() {
	for i := range a.PendingCalibrations {
		a.PendingCalibrations[i].Approved = true
	}
}

// DeadlineExpired reports whether the correction window has lapsed.
func (a Assessment) DeadlineExpired(now time.Time) bool {
	return a.GracePeriodExpiresAt != nil && now.After(*a.GracePeriodExpiresAt)
}
