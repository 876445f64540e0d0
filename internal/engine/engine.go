// Package engine evaluates declarative eligibility rules against a job
// application record. Evaluation is pure and deterministic: the same rule set
// and record always produce the same verdict, every rule is evaluated (no
// short-circuiting on failure), and a malformed rule fails that rule alone.
package engine

import (
	"fmt"
	"strings"

	"github.com/ketwaroo/appscreener/internal/record"
	"github.com/ketwaroo/appscreener/internal/rules"
)

// Outcome is the result of evaluating one top-level rule. Reason is populated
// only on failure.
type Outcome struct {
	Field       string     `json:"field,omitempty"`
	Type        rules.Type `json:"type"`
	Description string     `json:"description,omitempty"`
	Passed      bool       `json:"passed"`
	Reason      string     `json:"reason,omitempty"`
}

// Verdict is the structured-evaluation result for one application.
type Verdict struct {
	Passed      bool      `json:"passed"`
	Score       float64   `json:"score"`
	Details     []Outcome `json:"details"`
	PassedCount int       `json:"passed_count"`
	FailedCount int       `json:"failed_count"`
}

// Evaluate runs every structured rule in the set against the record, in order.
// Unstructured rules are excluded here; the screening layer routes them to the
// LLM collaborator. An empty rule set passes vacuously with score 1.0.
func Evaluate(rec record.Record, set rules.Set) Verdict {
	details := make([]Outcome, 0, len(set))
	passedCount := 0

	for _, rule := range set {
		if rule.IsUnstructured() {
			continue
		}

		passed, reason := evaluateRule(rec, rule)
		outcome := Outcome{
			Field:       rule.Field,
			Type:        rule.Type,
			Description: rule.Description,
			Passed:      passed,
		}
		if passed {
			passedCount++
		} else {
			outcome.Reason = reason
		}
		details = append(details, outcome)
	}

	verdict := Verdict{
		Details:     details,
		PassedCount: passedCount,
		FailedCount: len(details) - passedCount,
	}
	if len(details) == 0 {
		verdict.Passed = true
		verdict.Score = 1.0
		return verdict
	}
	verdict.Passed = passedCount == len(details)
	verdict.Score = float64(passedCount) / float64(len(details))
	return verdict
}

// evaluateRule dispatches one rule, recursing into composites.
func evaluateRule(rec record.Record, r rules.Rule) (bool, string) {
	// An optional primitive rule only binds when its field is supplied.
	if r.Optional && r.Field != "" {
		if value, ok := rec.Lookup(r.Field); !ok || value == nil {
			return true, ""
		}
	}

	switch r.Type {
	case rules.TypeAnd:
		return evalAnd(rec, r.Rules)
	case rules.TypeOr:
		return evalOr(rec, r.Rules)
	case rules.TypeOptionalAnd:
		return evalOptionalAnd(rec, r)
	case rules.TypeNot:
		return evalNot(rec, r)
	case rules.TypeUnstructured:
		// Inside a composite an unstructured rule contributes nothing; the
		// screening layer judges it separately.
		return true, ""
	}

	if r.IsArrayMatch() {
		return evalArrayMatch(rec, r)
	}

	value, ok := rec.Lookup(r.Field)
	present := ok && value != nil

	switch r.Type {
	case rules.TypeExactMatch:
		return checkExactMatch(r, value, present)
	case rules.TypeOneOf:
		return checkOneOf(r, value, present)
	case rules.TypeNotIn:
		return checkNotIn(r, value, present)
	case rules.TypeRange:
		return checkRange(r, value, present)
	case rules.TypeMin:
		return checkMin(r, value, present)
	case rules.TypeMax:
		return checkMax(r, value, present)
	case rules.TypeBoolean:
		return checkBoolean(r, value, present)
	case rules.TypeExists:
		return checkExists(r, value, present)
	case rules.TypeNotExists:
		return checkNotExists(r, value, present)
	case rules.TypeRegex:
		return checkRegex(r, value, present)
	case rules.TypeStringContains:
		return checkStringContains(r, value, present)
	case rules.TypeLengthCheck:
		return checkLength(r, value, present)
	case rules.TypeArrayLength:
		return checkArrayLength(r, value, present)
	case rules.TypeDateBefore:
		return checkDateBefore(r, value, present)
	case rules.TypeDateAfter:
		return checkDateAfter(r, value, present)
	case rules.TypeDateRange:
		return checkDateRange(r, value, present)
	default:
		return false, fmt.Sprintf("unknown rule type: %s", r.Type)
	}
}

// evalAnd passes iff every child passes. The failure reason lists every
// failing child's reason, tagged with the child's field.
func evalAnd(rec record.Record, children []rules.Rule) (bool, string) {
	var reasons []string
	for _, child := range children {
		if passed, reason := evaluateRule(rec, child); !passed {
			reasons = append(reasons, tagReason(child, reason))
		}
	}
	if len(reasons) > 0 {
		return false, strings.Join(reasons, "; ")
	}
	return true, ""
}

// evalOr passes iff at least one child passes. When none do, every attempted
// alternative's reason is reported.
func evalOr(rec record.Record, children []rules.Rule) (bool, string) {
	var reasons []string
	for _, child := range children {
		passed, reason := evaluateRule(rec, child)
		if passed {
			return true, ""
		}
		reasons = append(reasons, tagReason(child, reason))
	}
	return false, "no alternative passed: " + strings.Join(reasons, "; ")
}

// evalOptionalAnd behaves as "and" over its children, but the whole group is
// skipped while every referenced field is absent: the block only becomes
// binding once the applicant supplies at least one governed field.
func evalOptionalAnd(rec record.Record, r rules.Rule) (bool, string) {
	inPlay := false
	for _, field := range r.ReferencedFields() {
		if value, ok := rec.Lookup(field); ok && value != nil {
			inPlay = true
			break
		}
	}
	if !inPlay {
		return true, ""
	}
	return evalAnd(rec, r.Rules)
}

func evalNot(rec record.Record, r rules.Rule) (bool, string) {
	if r.Rule == nil {
		return false, "not rule has no child rule"
	}
	if passed, _ := evaluateRule(rec, *r.Rule); passed {
		return false, fmt.Sprintf("expected %s to fail", r.Rule.Descriptor())
	}
	return true, ""
}

// evalArrayMatch searches arrays of objects resolved through a wildcard path
// for an element whose match_field equals match_value, then checks that
// element's check_field against the allowed values.
func evalArrayMatch(rec record.Record, r rules.Rule) (bool, string) {
	value, ok := rec.Lookup(r.Field)
	if !ok || value == nil {
		return false, fmt.Sprintf("path %s not found in record", r.Field)
	}

	if found, checked := searchMatch(value, r); found {
		return true, ""
	} else if checked {
		return false, fmt.Sprintf("found %v but its %s is not in %v", r.MatchValue, r.CheckField, r.Values)
	}
	return false, fmt.Sprintf("could not find %v with acceptable %s in %v", r.MatchValue, r.CheckField, r.Values)
}

// searchMatch walks arbitrarily nested arrays looking for a matching object.
// It reports whether an acceptable element was found, and whether any element
// matched match_value at all (for the failure reason).
func searchMatch(value any, r rules.Rule) (found, matched bool) {
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			f, m := searchMatch(item, r)
			if f {
				return true, true
			}
			matched = matched || m
		}
		return false, matched
	case map[string]any:
		if !equalValues(v[r.MatchField], r.MatchValue) {
			return false, false
		}
		check, ok := v[r.CheckField]
		if !ok {
			return false, true
		}
		return containsValue(r.Values, check), true
	default:
		return false, false
	}
}

func tagReason(child rules.Rule, reason string) string {
	descriptor := child.Descriptor()
	if reason == "" {
		return descriptor + ": failed"
	}
	if strings.HasPrefix(reason, descriptor) {
		return reason
	}
	return descriptor + ": " + reason
}
