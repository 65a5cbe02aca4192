// Package schema defines indicator form and calculation schemas.
//
// Indicator definitions are authored in YAML and resolved into immutable
// snapshots once an assessment is first submitted. The core never reads
// the live catalog for historical assessments.
package schema

import (
	"fmt"
	"strings"
)

// FieldKind identifies the input type of a form field.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldDate     FieldKind = "date"
	FieldSelect   FieldKind = "select"
	FieldRadio    FieldKind = "radio"
	FieldCheckbox FieldKind = "checkbox"
	FieldSection  FieldKind = "section"
)

// Option is one declared choice for select, radio, and checkbox fields.
type Option struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// FieldSpec describes one field of a dynamic indicator form.
//
// The kind selects which attributes are meaningful: Options only apply to
// select/radio/checkbox fields, EvidenceSection marks fields that need at
// least one uploaded evidence file tagged with that section.
type FieldSpec struct {
	ID              string    `yaml:"id" json:"id"`
	Kind            FieldKind `yaml:"kind" json:"kind"`
	Label           string    `yaml:"label,omitempty" json:"label,omitempty"`
	Optional        bool      `yaml:"optional,omitempty" json:"optional,omitempty"`
	Options         []Option  `yaml:"options,omitempty" json:"options,omitempty"`
	EvidenceSection string    `yaml:"evidence_section,omitempty" json:"evidence_section,omitempty"`
}

// HasOption reports whether id is a declared option of the field.
func (f FieldSpec) HasOption(id string) bool {
	for _, opt := range f.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// OptionIDs lists the declared option ids in order.
func (f FieldSpec) OptionIDs() []string {
	ids := make([]string, 0, len(f.Options))
	for _, opt := range f.Options {
		ids = append(ids, opt.ID)
	}
	return ids
}

// FormSchema is the dynamic form definition of one indicator.
//
// A form with no typed fields falls back to the legacy convention: every
// response key ending in "_compliance" must hold yes/no/na, and "yes"
// answers need evidence tagged with the key's section prefix.
type FormSchema struct {
	Fields []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// IsLegacy reports whether the form uses the flat compliance convention.
func (s FormSchema) IsLegacy() bool {
	return len(s.Fields) == 0
}

// Field returns the definition for a field id.
func (s FormSchema) Field(id string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// LegacyComplianceSection extracts the section prefix from a legacy
// "<section>_compliance" key. The second return is false when the key
// does not follow the convention.
func LegacyComplianceSection(key string) (string, bool) {
	const suffix = "_compliance"
	if !strings.HasSuffix(key, suffix) {
		return "", false
	}
	section := strings.TrimSuffix(key, suffix)
	if section == "" {
		return "", false
	}
	return section, true
}

// Validate checks structural invariants of the form definition.
func (s FormSchema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("form field with empty id")
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("duplicate form field %q", f.ID)
		}
		seen[f.ID] = struct{}{}
		switch f.Kind {
		case FieldText, FieldNumber, FieldDate, FieldSection:
		case FieldSelect, FieldRadio, FieldCheckbox:
			if len(f.Options) == 0 {
				return fmt.Errorf("field %q kind %s requires options", f.ID, f.Kind)
			}
		default:
			return fmt.Errorf("field %q has unknown kind %q", f.ID, f.Kind)
		}
	}
	return nil
}
