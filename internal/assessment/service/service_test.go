package service_test

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/assessment/service"
	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/jobs"
	"github.com/generyand/sinag-sub000/internal/schema"
	"github.com/generyand/sinag-sub000/internal/snapshot"
	"github.com/generyand/sinag-sub000/internal/storage/memory"
)

// catalogYAML covers all six governance areas with one leaf indicator
// each. Area 1 uses a typed form with required evidence; the rest use
// the legacy compliance convention.
const catalogYAML = `
year: 2026
indicators:
  - id: "1.1"
    area: 1
    code: FIN-01
    name: Financial report posted
    form:
      fields:
        - id: report_quarter
          kind: text
        - id: report_posted
          kind: radio
          options:
            - id: "yes"
              label: "Yes"
            - id: "no"
              label: "No"
          evidence_section: financial_report
  - id: "2.1"
    area: 2
    code: DRR-01
    name: BDRRMC organized
  - id: "3.1"
    area: 3
    code: SPO-01
    name: Peace and order plan adopted
  - id: "4.1"
    area: 4
    code: SOC-01
    name: BDC organized
  - id: "5.1"
    area: 5
    code: BIZ-01
    name: Business permit records kept
  - id: "6.1"
    area: 6
    code: ENV-01
    name: Solid waste committee organized
`

var (
	blgu     = domain.Actor{UserID: "blgu-1", Role: domain.RoleBLGU}
	assessor = domain.Actor{UserID: "assessor-1", Role: domain.RoleAssessor}
	mlgoo    = domain.Actor{UserID: "mlgoo-1", Role: domain.RoleMLGOO}
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
)

func validator(areaID int) domain.Actor {
	return domain.Actor{
		UserID: fmt.Sprintf("validator-%d", areaID),
		Role:   domain.RoleValidator,
		AreaID: areaID,
	}
}

// stepClock advances one minute per reading so ordered timestamps
// (submission vs rework request) stay distinguishable.
type stepClock struct {
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

type recordingDispatcher struct {
	jobs []jobs.Job
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job jobs.Job) error {
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) names() []string {
	out := make([]string, 0, len(d.jobs))
	for _, j := range d.jobs {
		out = append(out, j.Name)
	}
	return out
}

func (d *recordingDispatcher) count(name string) int {
	n := 0
	for _, j := range d.jobs {
		if j.Name == name {
			n++
		}
	}
	return n
}

type fixture struct {
	svc   *service.Service
	store *memory.Store
	disp  *recordingDispatcher
	clock *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := schema.LoadCatalog(fstest.MapFS{
		"catalog.yaml": &fstest.MapFile{Data: []byte(catalogYAML)},
	}, ".")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	store := memory.New()
	disp := &recordingDispatcher{}
	clock := newStepClock()
	n := 0
	ids := func() (string, error) {
		n++
		return fmt.Sprintf("id-%d", n), nil
	}
	svc := service.New(store, catalog, snapshot.NewWithClock(catalog, clock.Now, nil), disp, service.Config{}).
		WithClock(clock.Now, ids)
	return &fixture{svc: svc, store: store, disp: disp, clock: clock}
}

func (f *fixture) newAssessment(t *testing.T) domain.Assessment {
	t.Helper()
	a, err := f.svc.GetOrCreateAssessment(context.Background(), "brgy-1", 2026)
	if err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	return a
}

func mustSucceed(t *testing.T, res service.OpResult, err error, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
	if !res.Success {
		t.Fatalf("%s refused: %+v", op, res.Errors)
	}
}

func requireRefusal(t *testing.T, res service.OpResult, err error, code apperrors.Code, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
	if res.Success {
		t.Fatalf("%s succeeded, want refusal %s", op, code)
	}
	if len(res.Errors) != 1 || res.Errors[0].Code != code {
		t.Fatalf("%s errors = %+v, want %s", op, res.Errors, code)
	}
}

// fillComplete saves a complete answer for every indicator and attaches
// the evidence area 1 requires. Returns response ids by indicator.
func (f *fixture) fillComplete(t *testing.T, assessmentID string) map[string]string {
	t.Helper()
	ctx := context.Background()

	res, err := f.svc.SaveResponse(ctx, blgu, assessmentID, "1.1", map[string]any{
		"report_quarter": "Q1 2026",
		"report_posted":  "yes",
	})
	mustSucceed(t, res, err, "save 1.1")

	legacy := map[string]string{
		"2.1": "bdrrmc",
		"3.1": "peace_order_plan",
		"4.1": "bdc",
		"5.1": "business_permits",
		"6.1": "solid_waste",
	}
	for id, section := range legacy {
		res, err := f.svc.SaveResponse(ctx, blgu, assessmentID, id, map[string]any{
			section + "_compliance": "no",
		})
		mustSucceed(t, res, err, "save "+id)
	}

	ids := f.responseIDs(t, assessmentID)
	res, err = f.svc.UploadEvidence(ctx, blgu, assessmentID, ids["1.1"], "financial_report", []byte("report.pdf"))
	mustSucceed(t, res, err, "upload evidence")
	return ids
}

func (f *fixture) responseIDs(t *testing.T, assessmentID string) map[string]string {
	t.Helper()
	overview, err := f.svc.GetOverview(context.Background(), assessmentID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	out := make(map[string]string, len(overview.Responses))
	for _, r := range overview.Responses {
		out[r.IndicatorID] = r.ID
	}
	return out
}

func (f *fixture) assessment(t *testing.T, id string) domain.Assessment {
	t.Helper()
	overview, err := f.svc.GetOverview(context.Background(), id)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	return overview.Assessment
}

// reviewAll records an assessor checklist entry on every response.
func (f *fixture) reviewAll(t *testing.T, assessmentID string) {
	t.Helper()
	for _, id := range f.responseIDs(t, assessmentID) {
		res, err := f.svc.ReviewResponse(context.Background(), assessor, assessmentID, id,
			map[string]any{"documents_verified": true}, "")
		mustSucceed(t, res, err, "review "+id)
	}
}

// validateAll walks the governance areas in order: each validator
// records passing verdicts for their area and closes it. The validator
// closing the last area triggers the aggregation.
func (f *fixture) validateAll(t *testing.T, assessmentID string) {
	t.Helper()
	ctx := context.Background()
	overview, err := f.svc.GetOverview(ctx, assessmentID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	for area := 1; area <= 6; area++ {
		for _, r := range overview.Responses {
			if r.AreaID != area {
				continue
			}
			res, err := f.svc.ValidateResponse(ctx, validator(area), assessmentID, r.ID,
				domain.ValidationPass, map[string]any{"verified": true}, false)
			mustSucceed(t, res, err, "validate "+r.IndicatorID)
		}
		res, err := f.svc.Finalize(ctx, validator(area), assessmentID)
		mustSucceed(t, res, err, fmt.Sprintf("finalize area %d", area))
	}
}

// toAwaitingValidation runs the happy path up to the validator phase.
func (f *fixture) toAwaitingValidation(t *testing.T) domain.Assessment {
	t.Helper()
	ctx := context.Background()
	a := f.newAssessment(t)
	f.fillComplete(t, a.ID)

	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")
	f.reviewAll(t, a.ID)
	res, err = f.svc.Finalize(ctx, assessor, a.ID)
	mustSucceed(t, res, err, "assessor finalize")
	if res.NewStatus != domain.StatusAwaitingFinalValidation {
		t.Fatalf("status = %s", res.NewStatus)
	}
	return f.assessment(t, a.ID)
}

// toCompleted runs the happy path through final approval.
func (f *fixture) toCompleted(t *testing.T) domain.Assessment {
	t.Helper()
	a := f.toAwaitingValidation(t)
	f.validateAll(t, a.ID)
	res, err := f.svc.ApproveFinal(context.Background(), mlgoo, a.ID)
	mustSucceed(t, res, err, "approve")
	return f.assessment(t, a.ID)
}

func TestGetOrCreateAssessmentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := f.newAssessment(t)
	second := f.newAssessment(t)
	if first.ID != second.ID {
		t.Fatalf("second access created a new record: %s vs %s", first.ID, second.ID)
	}
	if first.Status != domain.StatusDraft {
		t.Fatalf("status = %s", first.Status)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.toCompleted(t)

	if a.Status != domain.StatusCompleted {
		t.Fatalf("status = %s", a.Status)
	}
	if a.CompletedAt == nil || a.FirstSubmittedAt == nil {
		t.Fatalf("timestamps = %v, %v", a.CompletedAt, a.FirstSubmittedAt)
	}
	if a.FinalComplianceStatus != domain.CompliancePassed {
		t.Fatalf("compliance = %s", a.FinalComplianceStatus)
	}
	if a.InstitutionFunctionality != "HIGHLY_FUNCTIONAL" {
		t.Fatalf("functionality = %s", a.InstitutionFunctionality)
	}
	for area := 1; area <= 6; area++ {
		if a.AreaSubmissionStatus[area] != service.AreaValidated {
			t.Errorf("area %d status = %q", area, a.AreaSubmissionStatus[area])
		}
		if !a.AreaAssessorApproved[area] {
			t.Errorf("area %d missing assessor approval", area)
		}
	}

	names := f.disp.names()
	want := map[string]int{
		jobs.JobNotifySubmission: 1,
		jobs.JobNotifyApproval:   1,
		// All-areas completion plus final approval each request insights.
		jobs.JobGenerateInsights: 2,
	}
	for name, n := range want {
		if got := f.disp.count(name); got != n {
			t.Errorf("dispatched %s %d times, want %d (all: %v)", name, got, n, names)
		}
	}
	if got := f.disp.count(jobs.JobNotifyValidation); got != 7 {
		t.Errorf("validation notifications = %d, want 7", got)
	}

	// First submission froze one snapshot per indicator.
	snaps, err := f.store.ListSnapshots(context.Background(), a.ID)
	if err != nil || len(snaps) != 6 {
		t.Fatalf("snapshots = %d, err %v", len(snaps), err)
	}
}

func TestSubmitPrecheckEnumeratesEveryOffender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)

	// Typed form: one field missing, the radio answered without its
	// evidence. Legacy form: a yes answer with no evidence.
	res, err := f.svc.SaveResponse(ctx, blgu, a.ID, "1.1", map[string]any{"report_posted": "yes"})
	mustSucceed(t, res, err, "save 1.1")
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "yes"})
	mustSucceed(t, res, err, "save 2.1")

	res, err = f.svc.Submit(ctx, blgu, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Success {
		t.Fatal("incomplete submission accepted")
	}
	if res.NewStatus != domain.StatusDraft {
		t.Fatalf("status = %s, submit must not transition", res.NewStatus)
	}

	byCode := make(map[apperrors.Code][]string)
	for _, e := range res.Errors {
		byCode[e.Code] = append(byCode[e.Code], e.Metadata["indicator_id"])
	}
	if len(res.Errors) != 3 {
		t.Fatalf("errors = %+v, want 3 entries", res.Errors)
	}
	if got := byCode[apperrors.CodeMissingEvidence]; len(got) != 2 {
		t.Errorf("missing evidence offenders = %v, want 1.1 and 2.1", got)
	}
	if got := byCode[apperrors.CodeResponseIncomplete]; len(got) != 1 || got[0] != "1.1" {
		t.Errorf("incomplete offenders = %v, want [1.1]", got)
	}
	if f.disp.count(jobs.JobNotifySubmission) != 0 {
		t.Error("refused submission dispatched a notification")
	}
}

func TestReworkRoundHappensOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	ids := f.fillComplete(t, a.ID)

	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")

	// Annotate one response; the rework reopens annotated responses.
	res, err = f.svc.ReviewResponse(ctx, assessor, a.ID, ids["2.1"],
		map[string]any{"finding": "report not countersigned"}, "Attach a countersigned copy.")
	mustSucceed(t, res, err, "review")

	res, err = f.svc.RequestRework(ctx, assessor, a.ID, nil)
	mustSucceed(t, res, err, "request rework")
	if res.NewStatus != domain.StatusRework {
		t.Fatalf("status = %s", res.NewStatus)
	}

	got := f.assessment(t, a.ID)
	if got.ReworkCount != 1 || got.ReworkRequestedBy != assessor.UserID {
		t.Fatalf("rework fields = %d, %q", got.ReworkCount, got.ReworkRequestedBy)
	}
	if got.GracePeriodExpiresAt == nil {
		t.Fatal("no correction deadline granted")
	}

	// Only the reopened response is editable.
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "no"})
	mustSucceed(t, res, err, "edit reopened response")
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "6.1", map[string]any{"solid_waste_compliance": "yes"})
	requireRefusal(t, res, err, apperrors.CodeReworkNotRequested, "edit untouched response")

	res, err = f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "resubmit")
	if res.NewStatus != domain.StatusSubmitted {
		t.Fatalf("resubmission status = %s, want submitted", res.NewStatus)
	}

	// The single table-wide round is spent.
	res, err = f.svc.RequestRework(ctx, assessor, a.ID, []string{ids["2.1"]})
	requireRefusal(t, res, err, apperrors.CodeReworkAlreadyUsed, "second rework")

	if f.disp.count(jobs.JobGenerateReworkSummary) != 1 {
		t.Errorf("rework summaries = %d, want 1", f.disp.count(jobs.JobGenerateReworkSummary))
	}
}

func TestResubmitRefreshesUntouchedResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	ids := f.fillComplete(t, a.ID)

	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")
	res, err = f.svc.ReviewResponse(ctx, assessor, a.ID, ids["2.1"],
		map[string]any{"finding": "stale report"}, "")
	mustSucceed(t, res, err, "review 2.1")
	res, err = f.svc.ReviewResponse(ctx, assessor, a.ID, ids["3.1"],
		map[string]any{"finding": "content question"}, "")
	mustSucceed(t, res, err, "review 3.1")
	res, err = f.svc.RequestRework(ctx, assessor, a.ID, nil)
	mustSucceed(t, res, err, "request rework")

	// Only one reopened response is edited; the other was already
	// complete and the submitter leaves it alone.
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "na"})
	mustSucceed(t, res, err, "edit 2.1")
	res, err = f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "resubmit")

	for _, id := range []string{"2.1", "3.1"} {
		r, err := f.store.GetResponse(ctx, ids[id])
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if r.RequiresRework {
			t.Errorf("%s still flagged after resubmission", id)
		}
		if !r.IsCompleted {
			t.Errorf("%s is_completed = false after successful submission", id)
		}
	}
}

func TestAssessorFinalizeFromReworkRefreshesResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	ids := f.fillComplete(t, a.ID)

	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")
	for id, rid := range ids {
		res, err := f.svc.ReviewResponse(ctx, assessor, a.ID, rid,
			map[string]any{"documents_verified": true}, "re-check the figures")
		mustSucceed(t, res, err, "review "+id)
	}
	res, err = f.svc.RequestRework(ctx, assessor, a.ID, nil)
	mustSucceed(t, res, err, "request rework")

	// Closing the review while the rework is open implies satisfaction:
	// every flag clears and the cached completeness comes back.
	res, err = f.svc.Finalize(ctx, assessor, a.ID)
	mustSucceed(t, res, err, "finalize from rework")
	if res.NewStatus != domain.StatusAwaitingFinalValidation {
		t.Fatalf("status = %s", res.NewStatus)
	}
	for id, rid := range ids {
		r, err := f.store.GetResponse(ctx, rid)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if r.RequiresRework || !r.IsCompleted {
			t.Errorf("%s state = flagged %v, completed %v", id, r.RequiresRework, r.IsCompleted)
		}
	}
}

func TestReworkRequiresFlaggedResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	f.fillComplete(t, a.ID)
	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")

	res, err = f.svc.RequestRework(ctx, assessor, a.ID, nil)
	requireRefusal(t, res, err, apperrors.CodeReworkNeedsFlags, "empty rework")
}

func TestCalibrationRoundsPerArea(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.toAwaitingValidation(t)
	ids := f.responseIDs(t, a.ID)

	// Two validators flag their own areas and calibrate independently.
	res, err := f.svc.ValidateResponse(ctx, validator(1), a.ID, ids["1.1"],
		domain.ValidationFail, nil, true)
	mustSucceed(t, res, err, "flag 1.1")
	res, err = f.svc.ValidateResponse(ctx, validator(2), a.ID, ids["2.1"],
		domain.ValidationFail, nil, true)
	mustSucceed(t, res, err, "flag 2.1")

	res, err = f.svc.RequestCalibration(ctx, validator(1), a.ID)
	mustSucceed(t, res, err, "calibrate area 1")
	if res.NewStatus != domain.StatusRework {
		t.Fatalf("status = %s", res.NewStatus)
	}

	// The second request joins the open rework without re-transitioning.
	res, err = f.svc.RequestCalibration(ctx, validator(2), a.ID)
	mustSucceed(t, res, err, "calibrate area 2")
	if res.NewStatus != domain.StatusRework {
		t.Fatalf("status = %s", res.NewStatus)
	}

	got := f.assessment(t, a.ID)
	if len(got.PendingCalibrations) != 2 {
		t.Fatalf("pending calibrations = %+v", got.PendingCalibrations)
	}
	if !got.IsCalibrationRework || len(got.CalibratedAreaIDs) != 2 {
		t.Fatalf("calibration state = %v, %v", got.IsCalibrationRework, got.CalibratedAreaIDs)
	}

	// A pure calibration resubmission returns straight to validation.
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "1.1", map[string]any{
		"report_quarter": "Q1 2026 corrected",
		"report_posted":  "yes",
	})
	mustSucceed(t, res, err, "correct 1.1")
	res, err = f.svc.UploadEvidence(ctx, blgu, a.ID, ids["1.1"], "financial_report", []byte("v2.pdf"))
	mustSucceed(t, res, err, "re-upload evidence")
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "no"})
	mustSucceed(t, res, err, "correct 2.1")

	res, err = f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "resubmit")
	if res.NewStatus != domain.StatusAwaitingFinalValidation {
		t.Fatalf("resubmission status = %s, want awaiting final validation", res.NewStatus)
	}

	got = f.assessment(t, a.ID)
	if got.IsCalibrationRework {
		t.Error("calibration rework flag survived resubmission")
	}
	for _, pc := range got.PendingCalibrations {
		if !pc.Approved {
			t.Errorf("calibration not approved on resubmission: %+v", pc)
		}
	}

	// Each area gets exactly one calibration round per assessment.
	res, err = f.svc.ValidateResponse(ctx, validator(1), a.ID, ids["1.1"],
		domain.ValidationFail, nil, true)
	mustSucceed(t, res, err, "re-flag 1.1")
	res, err = f.svc.RequestCalibration(ctx, validator(1), a.ID)
	requireRefusal(t, res, err, apperrors.CodeAreaAlreadyCalibrated, "second calibration for area 1")
}

func TestCalibrationRequiresFlaggedResponse(t *testing.T) {
	f := newFixture(t)
	a := f.toAwaitingValidation(t)
	res, err := f.svc.RequestCalibration(context.Background(), validator(3), a.ID)
	requireRefusal(t, res, err, apperrors.CodeCalibrationNeedsFlags, "calibration without flags")
}

func TestValidatorCannotCrossAreas(t *testing.T) {
	f := newFixture(t)
	a := f.toAwaitingValidation(t)
	ids := f.responseIDs(t, a.ID)

	_, err := f.svc.ValidateResponse(context.Background(), validator(2), a.ID, ids["1.1"],
		domain.ValidationPass, nil, false)
	if !apperrors.IsCode(err, apperrors.CodeValidatorAreaMismatch) {
		t.Fatalf("err = %v, want validator_area_mismatch", err)
	}
}

func TestFinalizeValidationRequiresFullArea(t *testing.T) {
	f := newFixture(t)
	a := f.toAwaitingValidation(t)

	res, err := f.svc.Finalize(context.Background(), validator(1), a.ID)
	requireRefusal(t, res, err, apperrors.CodeAreaNotValidated, "finalize unvalidated area")
}

func TestAssessorFinalizeRequiresFullReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	f.fillComplete(t, a.ID)
	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")

	res, err = f.svc.Finalize(ctx, assessor, a.ID)
	requireRefusal(t, res, err, apperrors.CodeChecklistMissing, "finalize without review")
}

func TestApproveFinalIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.toCompleted(t)

	approvals := f.disp.count(jobs.JobNotifyApproval)
	res, err := f.svc.ApproveFinal(context.Background(), mlgoo, a.ID)
	mustSucceed(t, res, err, "re-approve")
	if res.NewStatus != domain.StatusCompleted {
		t.Fatalf("status = %s", res.NewStatus)
	}
	if f.disp.count(jobs.JobNotifyApproval) != approvals {
		t.Error("no-op approval re-dispatched notifications")
	}
}

func TestMlgooRecalibrationReopensOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.toCompleted(t)
	ids := f.responseIDs(t, a.ID)

	res, err := f.svc.RequestMlgooRecalibration(ctx, mlgoo, a.ID, []string{ids["2.1"]})
	mustSucceed(t, res, err, "recalibrate")
	if res.NewStatus != domain.StatusRework {
		t.Fatalf("status = %s", res.NewStatus)
	}

	got := f.assessment(t, a.ID)
	if got.MlgooRecalibrationCount != 1 {
		t.Fatalf("recalibration count = %d", got.MlgooRecalibrationCount)
	}
	// Neither the rework round nor calibration rounds are consumed.
	if got.ReworkCount != 0 || len(got.CalibratedAreaIDs) != 0 {
		t.Fatalf("rework = %d, calibrated = %v", got.ReworkCount, got.CalibratedAreaIDs)
	}

	// A recalibration resubmission re-enters final validation.
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "na"})
	mustSucceed(t, res, err, "correct reopened response")
	res, err = f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "resubmit")
	if res.NewStatus != domain.StatusAwaitingFinalValidation {
		t.Fatalf("resubmission status = %s", res.NewStatus)
	}

	// Only the reopened response lost its verdict; re-validating area 2
	// completes validation again because every other area kept theirs.
	res, err = f.svc.ValidateResponse(ctx, validator(2), a.ID, ids["2.1"],
		domain.ValidationPass, map[string]any{"verified": true}, false)
	mustSucceed(t, res, err, "re-validate 2.1")
	res, err = f.svc.Finalize(ctx, validator(2), a.ID)
	mustSucceed(t, res, err, "re-finalize area 2")
	if res.NewStatus != domain.StatusAwaitingMlgooApproval {
		t.Fatalf("status = %s", res.NewStatus)
	}

	// The single post-approval round is spent.
	res, err = f.svc.ApproveFinal(ctx, mlgoo, a.ID)
	mustSucceed(t, res, err, "re-approve")
	res, err = f.svc.RequestMlgooRecalibration(ctx, mlgoo, a.ID, []string{ids["2.1"]})
	requireRefusal(t, res, err, apperrors.CodeRecalibrationUsed, "second recalibration")
}

func TestRecalibrationNamesUnknownResponses(t *testing.T) {
	f := newFixture(t)
	a := f.toCompleted(t)

	_, err := f.svc.RequestMlgooRecalibration(context.Background(), mlgoo, a.ID, []string{"missing"})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestAreasInReworkFiltersGhostFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.toAwaitingValidation(t)
	ids := f.responseIDs(t, a.ID)

	res, err := f.svc.ValidateResponse(ctx, validator(1), a.ID, ids["1.1"],
		domain.ValidationFail, nil, true)
	mustSucceed(t, res, err, "flag 1.1")
	res, err = f.svc.RequestCalibration(ctx, validator(1), a.ID)
	mustSucceed(t, res, err, "calibrate area 1")

	// A stale flag in an uncalibrated area, left over from an earlier
	// phase, must not surface during the calibration rework.
	stale, err := f.store.GetResponse(ctx, ids["3.1"])
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	stale.RequiresRework = true
	if err := f.store.PutResponse(ctx, stale); err != nil {
		t.Fatalf("put response: %v", err)
	}

	areas, err := f.svc.AreasInRework(ctx, a.ID)
	if err != nil {
		t.Fatalf("areas in rework: %v", err)
	}
	if len(areas.Raw) != 2 || areas.Raw[0] != 1 || areas.Raw[1] != 3 {
		t.Fatalf("raw = %v, want [1 3]", areas.Raw)
	}
	if len(areas.Filtered) != 1 || areas.Filtered[0] != 1 {
		t.Fatalf("filtered = %v, want [1]", areas.Filtered)
	}
}

func TestDeadlineLockFreezesAssessment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	ids := f.fillComplete(t, a.ID)

	res, err := f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "submit")
	res, err = f.svc.ReviewResponse(ctx, assessor, a.ID, ids["2.1"],
		map[string]any{"finding": "stale report"}, "")
	mustSucceed(t, res, err, "review")
	res, err = f.svc.RequestRework(ctx, assessor, a.ID, nil)
	mustSucceed(t, res, err, "rework")

	// Locking before the window lapses is refused.
	res, err = f.svc.LockForDeadline(ctx, admin, a.ID)
	requireRefusal(t, res, err, apperrors.CodeDeadlineNotExpired, "early lock")

	locked, err := f.svc.LockExpired(ctx, f.clock.Now().Add(8*24*time.Hour))
	if err != nil {
		t.Fatalf("lock expired: %v", err)
	}
	if len(locked) != 1 || locked[0] != a.ID {
		t.Fatalf("locked = %v", locked)
	}

	res, err = f.svc.Submit(ctx, blgu, a.ID)
	requireRefusal(t, res, err, apperrors.CodeAssessmentLocked, "submit while locked")
	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "no"})
	requireRefusal(t, res, err, apperrors.CodeAssessmentLocked, "edit while locked")

	// The administrative override releases the lock with a fresh window.
	res, err = f.svc.ClearDeadlineLock(ctx, admin, a.ID)
	mustSucceed(t, res, err, "clear lock")
	got := f.assessment(t, a.ID)
	if got.IsLockedForDeadline || got.GracePeriodExpiresAt == nil {
		t.Fatalf("lock state = %v, %v", got.IsLockedForDeadline, got.GracePeriodExpiresAt)
	}

	res, err = f.svc.SaveResponse(ctx, blgu, a.ID, "2.1", map[string]any{"bdrrmc_compliance": "no"})
	mustSucceed(t, res, err, "edit after unlock")
	res, err = f.svc.Submit(ctx, blgu, a.ID)
	mustSucceed(t, res, err, "resubmit after unlock")
}

func TestPermissionsRaiseNotRefuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)

	_, err := f.svc.RequestRework(ctx, blgu, a.ID, nil)
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("blgu rework err = %v, want permission_denied", err)
	}
	_, err = f.svc.ApproveFinal(ctx, assessor, a.ID)
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("assessor approval err = %v, want permission_denied", err)
	}
	_, err = f.svc.Submit(ctx, blgu, "missing")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing assessment err = %v, want not_found", err)
	}
}

func TestValidationRefusedOutsideValidationPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssessment(t)
	ids := f.fillComplete(t, a.ID)

	res, err := f.svc.ValidateResponse(ctx, validator(1), a.ID, ids["1.1"],
		domain.ValidationPass, nil, false)
	requireRefusal(t, res, err, apperrors.CodeStatusDisallowsOp, "validate draft")
}
