package domain

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seqIDs(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return prefix + "-" + string(rune('0'+n)), nil
	}
}

func TestNewAssessment(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a, err := NewAssessment("brgy-1", 2026, fixedClock(now), seqIDs("a"))
	if err != nil {
		t.Fatalf("new assessment: %v", err)
	}
	if a.Status != StatusDraft {
		t.Fatalf("status = %s, want draft", a.Status)
	}
	if a.BarangayID != "brgy-1" || a.Year != 2026 {
		t.Fatalf("identity = (%s, %d)", a.BarangayID, a.Year)
	}
	if !a.CreatedAt.Equal(now) || !a.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %s / %s, want %s", a.CreatedAt, a.UpdatedAt, now)
	}

	if _, err := NewAssessment("", 2026, nil, nil); err == nil {
		t.Fatal("expected error for empty barangay id")
	}
	if _, err := NewAssessment("brgy-1", 0, nil, nil); err == nil {
		t.Fatal("expected error for zero year")
	}
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Assessment)
		wantErr bool
	}{
		{name: "fresh record", mutate: func(a *Assessment) {}},
		{name: "one rework", mutate: func(a *Assessment) { a.ReworkCount = 1 }},
		{name: "two reworks", mutate: func(a *Assessment) { a.ReworkCount = 2 }, wantErr: true},
		{name: "negative rework", mutate: func(a *Assessment) { a.ReworkCount = -1 }, wantErr: true},
		{name: "two recalibrations", mutate: func(a *Assessment) { a.MlgooRecalibrationCount = 2 }, wantErr: true},
		{name: "calibrated areas", mutate: func(a *Assessment) { a.CalibratedAreaIDs = []int{1, 3, 6} }},
		{name: "duplicate calibrated area", mutate: func(a *Assessment) { a.CalibratedAreaIDs = []int{2, 2} }, wantErr: true},
		{name: "calibrated area out of range", mutate: func(a *Assessment) { a.CalibratedAreaIDs = []int{7} }, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewAssessment("brgy-1", 2026, nil, nil)
			if err != nil {
				t.Fatalf("new assessment: %v", err)
			}
			tc.mutate(&a)
			err = a.CheckInvariants()
			if tc.wantErr && err == nil {
				t.Fatal("expected invariant violation")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected violation: %v", err)
			}
		})
	}
}

func TestCalibratedAreaSet(t *testing.T) {
	var a Assessment
	a.AddCalibratedArea(3)
	a.AddCalibratedArea(1)
	a.AddCalibratedArea(3)
	if got := len(a.CalibratedAreaIDs); got != 2 {
		t.Fatalf("set size = %d, want 2", got)
	}
	if a.CalibratedAreaIDs[0] != 1 || a.CalibratedAreaIDs[1] != 3 {
		t.Fatalf("set = %v, want [1 3]", a.CalibratedAreaIDs)
	}
	if !a.HasCalibratedArea(3) || a.HasCalibratedArea(2) {
		t.Fatal("membership checks wrong")
	}
}

func TestPendingCalibrations(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	a := Assessment{
		PendingCalibrations: []PendingCalibration{
			{ValidatorID: "val-1", AreaID: 2, RequestedAt: now},
			{ValidatorID: "val-2", AreaID: 5, RequestedAt: now, Approved: true},
			{ValidatorID: "val-3", AreaID: 2, RequestedAt: now},
		},
	}
	if !a.HasUnapprovedCalibration("val-1", 2) {
		t.Fatal("val-1 area 2 should be open")
	}
	if a.HasUnapprovedCalibration("val-2", 5) {
		t.Fatal("approved entry should not count as open")
	}
	if !a.HasAnyUnapprovedCalibration() {
		t.Fatal("open entries exist")
	}
	if got := a.ActiveCalibrationAreas(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("active areas = %v, want [2]", got)
	}
	if !a.AreaUnderActiveCalibration(2) || a.AreaUnderActiveCalibration(5) {
		t.Fatal("area activity checks wrong")
	}

	a.ApproveAllCalibrations()
	if a.HasAnyUnapprovedCalibration() {
		t.Fatal("all entries should be approved")
	}
}

func TestDeadlineExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var a Assessment
	if a.DeadlineExpired(now) {
		t.Fatal("no deadline set")
	}
	deadline := now.Add(time.Hour)
	a.GracePeriodExpiresAt = &deadline
	if a.DeadlineExpired(now) {
		t.Fatal("deadline not reached yet")
	}
	if !a.DeadlineExpired(now.Add(2 * time.Hour)) {
		t.Fatal("deadline lapsed")
	}
}
