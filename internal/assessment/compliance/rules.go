// Package compliance evaluates indicator calculation schemas and
// aggregates governance-area outcomes.
package compliance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/generyand/sinag-sub000/internal/errors"
	"github.com/generyand/sinag-sub000/internal/schema"
)

// Outcome is the result of evaluating one calculation schema.
type Outcome struct {
	Passed bool
	Status string
	Remark string
}

// EvaluateSchema evaluates the whole condition tree against the
// assessment data. Every group must be true (AND across groups) to
// select the pass status. Evaluation is pure; identical inputs always
// produce identical outcomes.
func EvaluateSchema(calc schema.CalculationSchema, data map[string]any) (Outcome, error) {
	passed := true
	for _, group := range calc.Groups {
		groupResult, err := evaluateGroup(group, data)
		if err != nil {
			return Outcome{}, err
		}
		if !groupResult {
			passed = false
			break
		}
	}

	status := calc.OutputStatusOnFail
	if passed {
		status = calc.OutputStatusOnPass
	}
	return Outcome{
		Passed: passed,
		Status: status,
		Remark: Remark(calc, passed),
	}, nil
}

// Remark returns the per-response remark template keyed by the boolean
// evaluation result.
func Remark(calc schema.CalculationSchema, passed bool) string {
	if passed {
		if calc.RemarkOnPass != "" {
			return calc.RemarkOnPass
		}
		return "All compliance conditions were met."
	}
	if calc.RemarkOnFail != "" {
		return calc.RemarkOnFail
	}
	return "One or more compliance conditions were not met."
}

func evaluateGroup(group schema.ConditionGroup, data map[string]any) (bool, error) {
	switch group.Operator {
	case schema.GroupAnd:
		for _, rule := range group.Rules {
			ok, err := evaluateRule(rule, data)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case schema.GroupOr:
		for _, rule := range group.Rules {
			ok, err := evaluateRule(rule, data)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, errors.WithMetadata(
			errors.CodeRuleUnknownKind,
			fmt.Sprintf("unknown group operator %q", group.Operator),
			map[string]string{"kind": string(group.Operator)},
		)
	}
}

func evaluateRule(rule schema.Rule, data map[string]any) (bool, error) {
	switch rule.Kind {
	case schema.RuleMatchValue:
		return evaluateMatchValue(rule, data)
	case schema.RuleCountThreshold:
		return evaluateCountThreshold(rule, data)
	case schema.RulePercentageThreshold:
		return evaluatePercentageThreshold(rule, data)
	case schema.RuleAndAll:
		for _, nested := range rule.Rules {
			ok, err := evaluateRule(nested, data)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case schema.RuleOrAny:
		for _, nested := range rule.Rules {
			ok, err := evaluateRule(nested, data)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case schema.RuleInstitutionFunctionality:
		return evaluateInstitutionFunctionality(rule, data)
	default:
		return false, errors.WithMetadata(
			errors.CodeRuleUnknownKind,
			fmt.Sprintf("unknown rule kind %q", rule.Kind),
			map[string]string{"kind": string(rule.Kind)},
		)
	}
}

func evaluateMatchValue(rule schema.Rule, data map[string]any) (bool, error) {
	value, err := lookupField(rule.Field, data)
	if err != nil {
		return false, err
	}
	// Numbers compare numerically so 85 matches 85.0 across YAML and
	// JSON decodings.
	if actual, ok := toFloat(value); ok {
		if expected, ok := toFloat(rule.Equals); ok {
			return actual == expected, nil
		}
	}
	return value == rule.Equals, nil
}

func evaluateCountThreshold(rule schema.Rule, data map[string]any) (bool, error) {
	value, err := lookupField(rule.Field, data)
	if err != nil {
		return false, err
	}
	items, ok := toSlice(value)
	if !ok {
		return false, typeMismatch(rule.Field, "array", value)
	}
	return compare(rule.Op, float64(len(items)), rule.Threshold)
}

func evaluatePercentageThreshold(rule schema.Rule, data map[string]any) (bool, error) {
	value, err := lookupField(rule.Field, data)
	if err != nil {
		return false, err
	}
	actual, ok := toFloat(value)
	if !ok {
		return false, typeMismatch(rule.Field, "number", value)
	}
	return compare(rule.Op, actual, rule.Threshold)
}

// evaluateInstitutionFunctionality classifies the institution from its
// sub-indicator results and requires the tier to meet the rule's
// minimum. An empty minimum accepts anything functional at all.
func evaluateInstitutionFunctionality(rule schema.Rule, data map[string]any) (bool, error) {
	value, err := lookupField(rule.Field, data)
	if err != nil {
		return false, err
	}
	items, ok := toSlice(value)
	if !ok {
		return false, typeMismatch(rule.Field, "array", value)
	}

	passed := 0
	for _, item := range items {
		if subIndicatorPassed(item) {
			passed++
		}
	}
	tier := ClassifyFunctionality(passed, len(items))

	minimum := FunctionalityTier(rule.MinimumTier)
	if rule.MinimumTier == "" {
		minimum = LowFunctional
	}
	if _, ok := tierRank[minimum]; !ok {
		return false, errors.WithMetadata(
			errors.CodeRuleTypeMismatch,
			fmt.Sprintf("unknown functionality tier %q", rule.MinimumTier),
			map[string]string{"field": rule.Field, "expected": "functionality tier", "actual": rule.MinimumTier},
		)
	}
	return tierRank[tier] >= tierRank[minimum], nil
}

// subIndicatorPassed interprets one sub-indicator result value.
func subIndicatorPassed(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "pass", "passed", "true":
			return true
		}
	}
	return false
}

func lookupField(field string, data map[string]any) (any, error) {
	value, ok := data[field]
	if !ok {
		available := make([]string, 0, len(data))
		for key := range data {
			available = append(available, key)
		}
		sort.Strings(available)
		return nil, errors.WithMetadata(
			errors.CodeRuleFieldMissing,
			fmt.Sprintf("rule references missing field %q", field),
			map[string]string{
				"field":     field,
				"available": strings.Join(available, ", "),
			},
		)
	}
	return value, nil
}

func typeMismatch(field, expected string, actual any) error {
	return errors.WithMetadata(
		errors.CodeRuleTypeMismatch,
		fmt.Sprintf("rule on field %q expected %s, got %T", field, expected, actual),
		map[string]string{
			"field":    field,
			"expected": expected,
			"actual":   fmt.Sprintf("%T", actual),
		},
	)
}

func compare(op schema.Comparator, actual, threshold float64) (bool, error) {
	switch op {
	case schema.CompareEqual:
		return actual == threshold, nil
	case schema.CompareNotEqual:
		return actual != threshold, nil
	case schema.CompareLess:
		return actual < threshold, nil
	case schema.CompareLessEqual:
		return actual <= threshold, nil
	case schema.CompareGreater:
		return actual > threshold, nil
	case schema.CompareGreaterEqual:
		return actual >= threshold, nil
	default:
		return false, errors.WithMetadata(
			errors.CodeRuleUnknownKind,
			fmt.Sprintf("unknown comparator %q", op),
			map[string]string{"kind": string(op)},
		)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []bool:
		out := make([]any, len(v))
		for i, b := range v {
			out[i] = b
		}
		return out, true
	default:
		return nil, false
	}
}
