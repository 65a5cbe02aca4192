package compliance

import (
	"testing"

	apperrors "github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/schema"
)

func TestEvaluateSchemaPercentageThreshold(t *testing.T) {
	calc := schema.CalculationSchema{
		Groups: []schema.ConditionGroup{{
			Operator: schema.GroupAnd,
			Rules: []schema.Rule{{
				Kind:      schema.RulePercentageThreshold,
				Field:     "utilization_rate",
				Op:        schema.CompareGreaterEqual,
				Threshold: 75,
			}},
		}},
		OutputStatusOnPass: "Pass",
		OutputStatusOnFail: "Fail",
	}

	got, err := EvaluateSchema(calc, map[string]any{"utilization_rate": 85})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got.Passed || got.Status != "Pass" {
		t.Fatalf("85 >= 75 should pass, got %+v", got)
	}

	got, err = EvaluateSchema(calc, map[string]any{"utilization_rate": 74.9})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.Passed || got.Status != "Fail" {
		t.Fatalf("74.9 >= 75 should fail, got %+v", got)
	}
}

func TestEvaluateSchemaMatchValue(t *testing.T) {
	calc := schema.CalculationSchema{
		Groups: []schema.ConditionGroup{{
			Operator: schema.GroupAnd,
			Rules:    []schema.Rule{{Kind: schema.RuleMatchValue, Field: "posted", Equals: "yes"}},
		}},
		OutputStatusOnPass: "Pass",
		OutputStatusOnFail: "Fail",
	}
	got, err := EvaluateSchema(calc, map[string]any{"posted": "yes"})
	if err != nil || !got.Passed {
		t.Fatalf("match should pass, got %+v err %v", got, err)
	}
	got, err = EvaluateSchema(calc, map[string]any{"posted": "no"})
	if err != nil || got.Passed {
		t.Fatalf("mismatch should fail, got %+v err %v", got, err)
	}
}

func TestEvaluateMatchValueNumericCoercion(t *testing.T) {
	// YAML decodes 85 as int, JSON as float64; both must match.
	rule := schema.Rule{Kind: schema.RuleMatchValue, Field: "rate", Equals: 85}
	ok, err := evaluateRule(rule, map[string]any{"rate": 85.0})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok {
		t.Fatal("85 should match 85.0")
	}
}

func TestEvaluateCountThreshold(t *testing.T) {
	rule := schema.Rule{
		Kind:      schema.RuleCountThreshold,
		Field:     "members",
		Op:        schema.CompareGreaterEqual,
		Threshold: 3,
	}
	ok, err := evaluateRule(rule, map[string]any{"members": []any{"a", "b", "c"}})
	if err != nil || !ok {
		t.Fatalf("3 members should satisfy, ok=%v err=%v", ok, err)
	}
	ok, err = evaluateRule(rule, map[string]any{"members": []string{"a"}})
	if err != nil || ok {
		t.Fatalf("1 member should not satisfy, ok=%v err=%v", ok, err)
	}

	_, err = evaluateRule(rule, map[string]any{"members": "three"})
	if !apperrors.IsCode(err, apperrors.CodeRuleTypeMismatch) {
		t.Fatalf("expected rule_type_mismatch, got %v", err)
	}
}

func TestEvaluateNestedGroups(t *testing.T) {
	calc := schema.CalculationSchema{
		Groups: []schema.ConditionGroup{
			{
				Operator: schema.GroupOr,
				Rules: []schema.Rule{
					{Kind: schema.RuleMatchValue, Field: "a", Equals: "yes"},
					{Kind: schema.RuleAndAll, Rules: []schema.Rule{
						{Kind: schema.RuleMatchValue, Field: "b", Equals: "yes"},
						{Kind: schema.RuleMatchValue, Field: "c", Equals: "yes"},
					}},
				},
			},
			{
				Operator: schema.GroupAnd,
				Rules:    []schema.Rule{{Kind: schema.RuleMatchValue, Field: "d", Equals: "yes"}},
			},
		},
		OutputStatusOnPass: "Pass",
		OutputStatusOnFail: "Fail",
	}

	got, err := EvaluateSchema(calc, map[string]any{"a": "no", "b": "yes", "c": "yes", "d": "yes"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got.Passed {
		t.Fatal("nested and_all inside or_any should pass")
	}

	got, err = EvaluateSchema(calc, map[string]any{"a": "no", "b": "yes", "c": "no", "d": "yes"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.Passed {
		t.Fatal("both or_any branches fail, group must fail")
	}
}

func TestEvaluateInstitutionFunctionality(t *testing.T) {
	rule := schema.Rule{
		Kind:        schema.RuleInstitutionFunctionality,
		Field:       "sub_indicators",
		MinimumTier: string(ModeratelyFunctional),
	}
	ok, err := evaluateRule(rule, map[string]any{
		"sub_indicators": []any{"pass", "pass", "fail", true},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok {
		t.Fatal("3/4 passed is highly functional, above the moderate minimum")
	}

	ok, err = evaluateRule(rule, map[string]any{
		"sub_indicators": []any{"pass", "fail", "fail", "fail"},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ok {
		t.Fatal("1/4 passed is low functional, below the moderate minimum")
	}

	_, err = evaluateRule(schema.Rule{
		Kind: schema.RuleInstitutionFunctionality, Field: "sub_indicators", MinimumTier: "SUPERB",
	}, map[string]any{"sub_indicators": []any{"pass"}})
	if !apperrors.IsCode(err, apperrors.CodeRuleTypeMismatch) {
		t.Fatalf("expected rule_type_mismatch for unknown tier, got %v", err)
	}
}

func TestEvaluateMissingFieldListsAvailable(t *testing.T) {
	rule := schema.Rule{Kind: schema.RuleMatchValue, Field: "absent", Equals: "yes"}
	_, err := evaluateRule(rule, map[string]any{"b": 1, "a": 2})
	if !apperrors.IsCode(err, apperrors.CodeRuleFieldMissing) {
		t.Fatalf("expected rule_field_missing, got %v", err)
	}
	meta := apperrors.GetMetadata(err)
	if meta["field"] != "absent" {
		t.Fatalf("metadata field = %q", meta["field"])
	}
	if meta["available"] != "a, b" {
		t.Fatalf("available = %q, want sorted list", meta["available"])
	}
}

func TestRemarkTemplates(t *testing.T) {
	calc := schema.CalculationSchema{RemarkOnPass: "met", RemarkOnFail: "unmet"}
	if got := Remark(calc, true); got != "met" {
		t.Fatalf("pass remark = %q", got)
	}
	if got := Remark(calc, false); got != "unmet" {
		t.Fatalf("fail remark = %q", got)
	}
	if got := Remark(schema.CalculationSchema{}, true); got == "" {
		t.Fatal("default pass remark must not be empty")
	}
	if got := Remark(schema.CalculationSchema{}, false); got == "" {
		t.Fatal("default fail remark must not be empty")
	}
}

func TestCompareOperators(t *testing.T) {
	tests := []struct {
		op        schema.Comparator
		actual    float64
		threshold float64
		want      bool
	}{
		{schema.CompareEqual, 5, 5, true},
		{schema.CompareNotEqual, 5, 5, false},
		{schema.CompareLess, 4, 5, true},
		{schema.CompareLessEqual, 5, 5, true},
		{schema.CompareGreater, 5, 5, false},
		{schema.CompareGreaterEqual, 5, 5, true},
	}
	for _, tc := range tests {
		got, err := compare(tc.op, tc.actual, tc.threshold)
		if err != nil {
			t.Fatalf("compare %s: %v", tc.op, err)
		}
		if got != tc.want {
			t.Errorf("%v %s %v = %v, want %v", tc.actual, tc.op, tc.threshold, got, tc.want)
		}
	}
	if _, err := compare("~", 1, 1); !apperrors.IsCode(err, apperrors.CodeRuleUnknownKind) {
		t.Fatalf("expected rule_unknown_kind, got %v", err)
	}
}
