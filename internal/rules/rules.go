package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Type identifies a rule kind. The set of kinds is closed: validation rejects
// anything else before a rule set is committed.
type Type string

const (
	// Primitive field checks.
	TypeExactMatch     Type = "exact_match"
	TypeOneOf          Type = "one_of"
	TypeNotIn          Type = "not_in"
	TypeRange          Type = "range"
	TypeMin            Type = "min"
	TypeMax            Type = "max"
	TypeBoolean        Type = "boolean"
	TypeExists         Type = "exists"
	TypeNotExists      Type = "not_exists"
	TypeRegex          Type = "regex"
	TypeStringContains Type = "string_contains"
	TypeLengthCheck    Type = "length_check"
	TypeArrayLength    Type = "array_length"
	TypeDateBefore     Type = "date_before"
	TypeDateAfter      Type = "date_after"
	TypeDateRange      Type = "date_range"

	// Free-text fields judged by the LLM collaborator, never by the engine.
	TypeUnstructured Type = "unstructured"

	// Composite rules over child rule lists.
	TypeAnd         Type = "and"
	TypeOr          Type = "or"
	TypeOptionalAnd Type = "optional_and"
	TypeNot         Type = "not"
)

var knownTypes = map[Type]struct{}{
	TypeExactMatch: {}, TypeOneOf: {}, TypeNotIn: {}, TypeRange: {},
	TypeMin: {}, TypeMax: {}, TypeBoolean: {}, TypeExists: {}, TypeNotExists: {},
	TypeRegex: {}, TypeStringContains: {}, TypeLengthCheck: {}, TypeArrayLength: {},
	TypeDateBefore: {}, TypeDateAfter: {}, TypeDateRange: {},
	TypeUnstructured: {}, TypeAnd: {}, TypeOr: {}, TypeOptionalAnd: {}, TypeNot: {},
}

// Rule is one declarative eligibility rule. Primitive rules carry a field path
// and type-specific parameters; composite rules carry child rules instead.
// Rules are immutable once loaded for the duration of one evaluation run.
type Rule struct {
	Field       string `json:"field,omitempty"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`

	// Optional marks a primitive rule that auto-passes when its field is
	// absent from the record.
	Optional bool `json:"optional,omitempty"`

	// Parameters for primitive rules. Which of them apply depends on Type.
	Value           any      `json:"value,omitempty"`
	Values          []any    `json:"values,omitempty"`
	Min             *float64 `json:"min,omitempty"`
	Max             *float64 `json:"max,omitempty"`
	Pattern         string   `json:"pattern,omitempty"`
	CaseInsensitive bool     `json:"case_insensitive,omitempty"`
	MinLength       *int     `json:"min_length,omitempty"`
	MaxLength       *int     `json:"max_length,omitempty"`
	After           string   `json:"after,omitempty"`
	Before          string   `json:"before,omitempty"`

	// Array-match parameters: search an array of objects (the field path must
	// contain a "*" wildcard) for an element whose MatchField equals
	// MatchValue, then check that element's CheckField against Values.
	MatchField string `json:"match_field,omitempty"`
	MatchValue any    `json:"match_value,omitempty"`
	CheckField string `json:"check_field,omitempty"`

	// EvaluationCriteria instructs the LLM collaborator for unstructured rules.
	EvaluationCriteria string `json:"evaluation_criteria,omitempty"`

	// Children of and/or/optional_and composites.
	Rules []Rule `json:"rules,omitempty"`
	// Negated child of a "not" composite.
	Rule *Rule `json:"rule,omitempty"`
}

// Set is an ordered rule set. Order defines evaluation and reporting order.
type Set []Rule

// IsComposite reports whether the rule combines child rules.
func (r Rule) IsComposite() bool {
	switch r.Type {
	case TypeAnd, TypeOr, TypeOptionalAnd, TypeNot:
		return true
	}
	return false
}

// IsUnstructured reports whether the rule is judged by the LLM collaborator.
func (r Rule) IsUnstructured() bool {
	return r.Type == TypeUnstructured
}

// IsArrayMatch reports whether the rule uses array-match parameters.
func (r Rule) IsArrayMatch() bool {
	return r.MatchField != ""
}

// Descriptor returns a short human-readable identifier for outcomes and logs.
func (r Rule) Descriptor() string {
	if r.Field != "" {
		return r.Field
	}
	return string(r.Type)
}

// Validate checks the rule against the schema. It never mutates the rule.
func (r Rule) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("rule must have a type")
	}
	if _, ok := knownTypes[r.Type]; !ok {
		return fmt.Errorf("unknown rule type: %s", r.Type)
	}

	switch r.Type {
	case TypeAnd, TypeOr, TypeOptionalAnd:
		if len(r.Rules) == 0 {
			return fmt.Errorf("%s rule must have a non-empty rules list", r.Type)
		}
		for i, child := range r.Rules {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("%s rule %d: %w", r.Type, i, err)
			}
		}
		return nil

	case TypeNot:
		if r.Rule == nil {
			return fmt.Errorf("not rule must have a child rule")
		}
		if err := r.Rule.Validate(); err != nil {
			return fmt.Errorf("not rule: %w", err)
		}
		return nil

	case TypeUnstructured:
		if r.Field == "" {
			return fmt.Errorf("unstructured rule must have a field")
		}
		if strings.TrimSpace(r.EvaluationCriteria) == "" {
			return fmt.Errorf("unstructured rule %q must have evaluation_criteria", r.Field)
		}
		return nil
	}

	// Field-based rules from here on.
	if r.Field == "" {
		return fmt.Errorf("%s rule must have a field", r.Type)
	}

	if r.IsArrayMatch() {
		if !strings.Contains(r.Field, "*") {
			return fmt.Errorf("array-match rule %q requires a wildcard field path", r.Field)
		}
		if r.MatchValue == nil || r.CheckField == "" {
			return fmt.Errorf("array-match rule %q requires match_value and check_field", r.Field)
		}
		if len(r.Values) == 0 {
			return fmt.Errorf("array-match rule %q requires values", r.Field)
		}
		return nil
	}

	switch r.Type {
	case TypeExactMatch:
		if r.Value == nil {
			return fmt.Errorf("exact_match rule %q must have a value", r.Field)
		}
	case TypeOneOf, TypeNotIn, TypeStringContains:
		if len(r.Values) == 0 {
			return fmt.Errorf("%s rule %q must have values", r.Type, r.Field)
		}
	case TypeRange:
		if r.Min == nil || r.Max == nil {
			return fmt.Errorf("range rule %q must have min and max", r.Field)
		}
		if *r.Min > *r.Max {
			return fmt.Errorf("range rule %q has min %v greater than max %v", r.Field, *r.Min, *r.Max)
		}
	case TypeMin:
		if r.Min == nil {
			return fmt.Errorf("min rule %q must have min", r.Field)
		}
	case TypeMax:
		if r.Max == nil {
			return fmt.Errorf("max rule %q must have max", r.Field)
		}
	case TypeBoolean:
		if _, ok := r.Value.(bool); !ok {
			return fmt.Errorf("boolean rule %q must have a boolean value", r.Field)
		}
	case TypeRegex:
		if r.Pattern == "" {
			return fmt.Errorf("regex rule %q must have a pattern", r.Field)
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("regex rule %q has an invalid pattern: %w", r.Field, err)
		}
	case TypeLengthCheck, TypeArrayLength:
		if r.MinLength == nil && r.MaxLength == nil {
			return fmt.Errorf("%s rule %q must have min_length or max_length", r.Type, r.Field)
		}
	case TypeDateBefore:
		if r.Before == "" {
			return fmt.Errorf("date_before rule %q must have before", r.Field)
		}
	case TypeDateAfter:
		if r.After == "" {
			return fmt.Errorf("date_after rule %q must have after", r.Field)
		}
	case TypeDateRange:
		if r.After == "" && r.Before == "" {
			return fmt.Errorf("date_range rule %q must have after or before", r.Field)
		}
	}

	return nil
}

// ReferencedFields collects the field paths the rule binds, recursing into
// composites. Used by optional_and to decide whether a group is in play.
func (r Rule) ReferencedFields() []string {
	var fields []string
	if r.Field != "" {
		fields = append(fields, r.Field)
	}
	for _, child := range r.Rules {
		fields = append(fields, child.ReferencedFields()...)
	}
	if r.Rule != nil {
		fields = append(fields, r.Rule.ReferencedFields()...)
	}
	return fields
}

// Validate checks every rule in the set, reporting the first offender.
func (s Set) Validate() error {
	for i, rule := range s {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// Structured returns the rules the engine evaluates, preserving order.
func (s Set) Structured() Set {
	out := make(Set, 0, len(s))
	for _, rule := range s {
		if !rule.IsUnstructured() {
			out = append(out, rule)
		}
	}
	return out
}

// Unstructured returns the rules routed to the LLM collaborator, preserving order.
func (s Set) Unstructured() Set {
	var out Set
	for _, rule := range s {
		if rule.IsUnstructured() {
			out = append(out, rule)
		}
	}
	return out
}

// Clone returns a deep copy of the set, so evaluations can hold a snapshot
// that later store mutations cannot touch.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		// A Set always marshals: it is built from JSON-compatible values.
		panic(fmt.Sprintf("cloning rule set: %v", err))
	}
	var out Set
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("cloning rule set: %v", err))
	}
	return out
}

// Parse decodes a rule set from its persistence format: an ordered JSON array
// of rule objects. The legacy envelope {"rules": [...], ...} is accepted too.
func Parse(data []byte) (Set, error) {
	var set Set
	if err := json.Unmarshal(data, &set); err == nil {
		return set, nil
	}

	var envelope struct {
		Rules Set `json:"rules"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parsing rule set: %w", err)
	}
	return envelope.Rules, nil
}

// Marshal encodes the set in its persistence format.
func (s Set) Marshal() ([]byte, error) {
	if s == nil {
		s = Set{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling rule set: %w", err)
	}
	return append(data, '\n'), nil
}
