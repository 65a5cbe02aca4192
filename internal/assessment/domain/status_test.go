package domain

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		value   string
		want    Status
		wantErr bool
	}{
		{value: "draft", want: StatusDraft},
		{value: "submitted", want: StatusSubmitted},
		{value: "in_review", want: StatusInReview},
		{value: "rework", want: StatusRework},
		{value: "awaiting_final_validation", want: StatusAwaitingFinalValidation},
		{value: "awaiting_mlgoo_approval", want: StatusAwaitingMlgooApproval},
		{value: "completed", want: StatusCompleted},
		{value: "submitted_legacy", want: StatusSubmittedLegacy},
		{value: "finished", wantErr: true},
		{value: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseStatus(tc.value)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q) expected error", tc.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tc.value, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusDraft, StatusRework, false},
		{StatusSubmitted, StatusRework, true},
		{StatusSubmitted, StatusAwaitingFinalValidation, true},
		{StatusSubmittedLegacy, StatusRework, true},
		{StatusInReview, StatusAwaitingFinalValidation, true},
		{StatusRework, StatusSubmitted, true},
		{StatusRework, StatusAwaitingFinalValidation, true},
		{StatusRework, StatusDraft, false},
		{StatusAwaitingFinalValidation, StatusRework, true},
		{StatusAwaitingFinalValidation, StatusAwaitingMlgooApproval, true},
		{StatusAwaitingMlgooApproval, StatusCompleted, true},
		{StatusAwaitingMlgooApproval, StatusRework, false},
		{StatusCompleted, StatusRework, false},
		{StatusCompleted, StatusDraft, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsSubmittedPhase(t *testing.T) {
	for _, s := range []Status{StatusSubmitted, StatusSubmittedLegacy, StatusInReview} {
		if !s.IsSubmittedPhase() {
			t.Errorf("%s should be a submitted phase", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusRework, StatusAwaitingFinalValidation, StatusAwaitingMlgooApproval, StatusCompleted} {
		if s.IsSubmittedPhase() {
			t.Errorf("%s should not be a submitted phase", s)
		}
	}
}
