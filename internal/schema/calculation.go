package schema

import (
	"fmt"
)

// RuleKind identifies a compliance rule variant.
type RuleKind string

const (
	RuleMatchValue               RuleKind = "match_value"
	RuleCountThreshold           RuleKind = "count_threshold"
	RulePercentageThreshold      RuleKind = "percentage_threshold"
	RuleAndAll                   RuleKind = "and_all"
	RuleOrAny                    RuleKind = "or_any"
	RuleInstitutionFunctionality RuleKind = "institution_functionality"
)

// Comparator is a numeric comparison operator for threshold rules.
type Comparator string

const (
	CompareEqual        Comparator = "=="
	CompareNotEqual     Comparator = "!="
	CompareLess         Comparator = "<"
	CompareLessEqual    Comparator = "<="
	CompareGreater      Comparator = ">"
	CompareGreaterEqual Comparator = ">="
)

// ValidComparator reports whether op is a known comparator.
func ValidComparator(op Comparator) bool {
	switch op {
	case CompareEqual, CompareNotEqual, CompareLess, CompareLessEqual, CompareGreater, CompareGreaterEqual:
		return true
	}
	return false
}

// GroupOperator combines the rules of one condition group.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Rule is one node of the compliance condition tree.
//
// The kind selects which attributes are meaningful; nested rules only
// apply to and_all/or_any. Keeping one tagged struct instead of an
// interface keeps YAML round-tripping and snapshot serialization flat.
type Rule struct {
	Kind RuleKind `yaml:"kind" json:"kind"`

	// match_value, count_threshold, percentage_threshold,
	// institution_functionality
	Field string `yaml:"field,omitempty" json:"field,omitempty"`

	// match_value
	Equals any `yaml:"equals,omitempty" json:"equals,omitempty"`

	// count_threshold, percentage_threshold
	Op        Comparator `yaml:"op,omitempty" json:"op,omitempty"`
	Threshold float64    `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// institution_functionality
	MinimumTier string `yaml:"minimum_tier,omitempty" json:"minimum_tier,omitempty"`

	// and_all, or_any
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// ConditionGroup combines rules under one AND/OR operator.
type ConditionGroup struct {
	Operator GroupOperator `yaml:"operator" json:"operator"`
	Rules    []Rule        `yaml:"rules" json:"rules"`
}

// CalculationSchema decides an indicator's validation outcome from its
// assessment data. All groups must pass (AND across groups) to select
// OutputStatusOnPass.
type CalculationSchema struct {
	Groups             []ConditionGroup `yaml:"groups" json:"groups"`
	OutputStatusOnPass string           `yaml:"output_status_on_pass" json:"output_status_on_pass"`
	OutputStatusOnFail string           `yaml:"output_status_on_fail" json:"output_status_on_fail"`
	RemarkOnPass       string           `yaml:"remark_on_pass,omitempty" json:"remark_on_pass,omitempty"`
	RemarkOnFail       string           `yaml:"remark_on_fail,omitempty" json:"remark_on_fail,omitempty"`
}

// IsZero reports whether the indicator has no calculation schema.
func (c CalculationSchema) IsZero() bool {
	return len(c.Groups) == 0 && c.OutputStatusOnPass == "" && c.OutputStatusOnFail == ""
}

// Validate checks structural invariants of the calculation schema.
func (c CalculationSchema) Validate() error {
	for i, group := range c.Groups {
		if group.Operator != GroupAnd && group.Operator != GroupOr {
			return fmt.Errorf("group %d has unknown operator %q", i, group.Operator)
		}
		if len(group.Rules) == 0 {
			return fmt.Errorf("group %d has no rules", i)
		}
		for j, rule := range group.Rules {
			if err := rule.validate(); err != nil {
				return fmt.Errorf("group %d rule %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func (r Rule) validate() error {
	switch r.Kind {
	case RuleMatchValue:
		if r.Field == "" {
			return fmt.Errorf("match_value rule requires a field")
		}
	case RuleCountThreshold, RulePercentageThreshold:
		if r.Field == "" {
			return fmt.Errorf("%s rule requires a field", r.Kind)
		}
		if !ValidComparator(r.Op) {
			return fmt.Errorf("%s rule has unknown comparator %q", r.Kind, r.Op)
		}
	case RuleInstitutionFunctionality:
		if r.Field == "" {
			return fmt.Errorf("institution_functionality rule requires a field")
		}
	case RuleAndAll, RuleOrAny:
		if len(r.Rules) == 0 {
			return fmt.Errorf("%s rule requires nested rules", r.Kind)
		}
		for i, nested := range r.Rules {
			if err := nested.validate(); err != nil {
				return fmt.Errorf("nested rule %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	return nil
}
