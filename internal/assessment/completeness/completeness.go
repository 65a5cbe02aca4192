// Package completeness decides whether one response is complete.
//
// Evaluate is a pure function over the indicator's form schema, the
// submitted values, and the attached evidence descriptors. It holds no
// state and is safe to call on every mutation.
package completeness

import (
	"sort"
	"strings"
	"time"

	"github.com/generyand/sinag-sub000/internal/evidence"
	"github.com/generyand/sinag-sub000/internal/schema"
)

// Result reports completeness and the fields still missing.
// MissingEvidence is the subset of MissingFields whose submitted value
// is fine but whose required evidence is absent for the current cycle.
type Result struct {
	IsComplete      bool
	MissingFields   []string
	MissingEvidence []string
}

// Evaluate checks a response against its form schema.
//
// cutoff is the start of the current correction cycle (most recent rework
// or calibration request for the response); evidence uploaded before it
// cannot satisfy completeness. A zero cutoff accepts all evidence.
func Evaluate(form schema.FormSchema, data map[string]any, descriptors []evidence.Descriptor, cutoff time.Time) Result {
	usable := evidence.UploadedSince(descriptors, cutoff)

	var missing, noEvidence []string
	if form.IsLegacy() {
		missing, noEvidence = evaluateLegacy(data, usable)
	} else {
		missing, noEvidence = evaluateTyped(form, data, usable)
	}

	return Result{
		IsComplete:      len(missing) == 0,
		MissingFields:   missing,
		MissingEvidence: noEvidence,
	}
}

// evaluateTyped validates every declared field by kind.
func evaluateTyped(form schema.FormSchema, data map[string]any, usable []evidence.Descriptor) (missing, noEvidence []string) {
	for _, field := range form.Fields {
		if field.Kind == schema.FieldSection {
			continue
		}
		value, present := data[field.ID]
		if !present || !valueSatisfies(field, value) {
			if field.Optional && !present {
				continue
			}
			missing = append(missing, field.ID)
			continue
		}
		if field.EvidenceSection != "" && !hasSectionEvidence(usable, field.EvidenceSection) {
			missing = append(missing, field.ID)
			noEvidence = append(noEvidence, field.ID)
		}
	}
	return missing, noEvidence
}

// evaluateLegacy validates the flat "<section>_compliance" convention:
// every such field holds yes/no/na and every "yes" answer has at least
// one matching-section evidence descriptor.
func evaluateLegacy(data map[string]any, usable []evidence.Descriptor) (missing, noEvidence []string) {
	for key, raw := range data {
		section, ok := schema.LegacyComplianceSection(key)
		if !ok {
			continue
		}
		value, isString := raw.(string)
		if !isString {
			missing = append(missing, section)
			continue
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "no", "na":
		case "yes":
			if !hasSectionEvidence(usable, section) {
				missing = append(missing, section)
				noEvidence = append(noEvidence, section)
			}
		default:
			missing = append(missing, section)
		}
	}
	sort.Strings(missing)
	sort.Strings(noEvidence)
	return missing, noEvidence
}

func hasSectionEvidence(descriptors []evidence.Descriptor, section string) bool {
	for _, d := range descriptors {
		if d.Section == section {
			return true
		}
	}
	return false
}

// valueSatisfies dispatches the per-kind validator for one field value.
func valueSatisfies(field schema.FieldSpec, value any) bool {
	switch field.Kind {
	case schema.FieldText:
		s, ok := value.(string)
		return ok && strings.TrimSpace(s) != ""
	case schema.FieldNumber:
		return isNumeric(value)
	case schema.FieldDate:
		return isDate(value)
	case schema.FieldSelect, schema.FieldRadio:
		s, ok := value.(string)
		return ok && field.HasOption(s)
	case schema.FieldCheckbox:
		return checkboxSatisfies(field, value)
	default:
		return false
	}
}

func checkboxSatisfies(field schema.FieldSpec, value any) bool {
	items, ok := asSlice(value)
	if !ok || len(items) == 0 {
		return false
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok || !field.HasOption(s) {
			return false
		}
	}
	return true
}

func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

// isDate accepts time values and ISO-8601 date strings.
func isDate(value any) bool {
	switch v := value.(type) {
	case time.Time:
		return !v.IsZero()
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false
		}
		if _, err := time.Parse("2006-01-02", trimmed); err == nil {
			return true
		}
		_, err := time.Parse(time.RFC3339, trimmed)
		return err == nil
	default:
		return false
	}
}
