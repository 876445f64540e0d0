package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ketwaroo/appscreener/internal/rules"
)

// Each predicate takes the extracted value plus the rule's parameters and
// returns (passed, reason). The reason is only consulted on failure and names
// the field and the offending value.

func checkExactMatch(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("Expected %v, got nothing: field %q is missing", r.Value, r.Field)
	}
	if equalValues(value, r.Value) {
		return true, ""
	}
	return false, fmt.Sprintf("Expected %v, got %v", r.Value, value)
}

func checkOneOf(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("field %q is missing", r.Field)
	}
	if containsValue(r.Values, value) {
		return true, ""
	}
	return false, fmt.Sprintf("%s=%v not in allowed set %v", r.Field, value, r.Values)
}

// Absent values pass not_in: there is nothing to forbid.
func checkNotIn(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return true, ""
	}
	if containsValue(r.Values, value) {
		return false, fmt.Sprintf("%s=%v is disallowed", r.Field, value)
	}
	return true, ""
}

func checkRange(r rules.Rule, value any, present bool) (bool, string) {
	if r.Min == nil || r.Max == nil {
		return false, fmt.Sprintf("range rule on %s is missing min or max", r.Field)
	}
	bounds := fmt.Sprintf("%s-%s", formatNum(*r.Min), formatNum(*r.Max))
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a number in range %s", r.Field, bounds)
	}
	f, ok := asFloat(value)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not numeric, expected a number in range %s", r.Field, value, bounds)
	}
	if f < *r.Min || f > *r.Max {
		return false, fmt.Sprintf("%s=%s not in range %s", r.Field, formatNum(f), bounds)
	}
	return true, ""
}

func checkMin(r rules.Rule, value any, present bool) (bool, string) {
	if r.Min == nil {
		return false, fmt.Sprintf("min rule on %s is missing min", r.Field)
	}
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a number >= %s", r.Field, formatNum(*r.Min))
	}
	f, ok := asFloat(value)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not numeric, expected a number >= %s", r.Field, value, formatNum(*r.Min))
	}
	if f < *r.Min {
		return false, fmt.Sprintf("%s=%s < %s", r.Field, formatNum(f), formatNum(*r.Min))
	}
	return true, ""
}

func checkMax(r rules.Rule, value any, present bool) (bool, string) {
	if r.Max == nil {
		return false, fmt.Sprintf("max rule on %s is missing max", r.Field)
	}
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a number <= %s", r.Field, formatNum(*r.Max))
	}
	f, ok := asFloat(value)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not numeric, expected a number <= %s", r.Field, value, formatNum(*r.Max))
	}
	if f > *r.Max {
		return false, fmt.Sprintf("%s=%s > %s", r.Field, formatNum(f), formatNum(*r.Max))
	}
	return true, ""
}

// checkBoolean requires the value to already be a boolean: numbers and strings
// are never coerced to truthiness.
func checkBoolean(r rules.Rule, value any, present bool) (bool, string) {
	expected, _ := r.Value.(bool)
	if !present {
		return false, fmt.Sprintf("%s is missing, expected %t", r.Field, expected)
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not a boolean, expected %t", r.Field, value, expected)
	}
	if b != expected {
		return false, fmt.Sprintf("Expected %t, got %t", expected, b)
	}
	return true, ""
}

// Empty strings, zeros and false all count as present; only a missing field or
// an explicit null fails the exists check.
func checkExists(r rules.Rule, _ any, present bool) (bool, string) {
	if present {
		return true, ""
	}
	return false, fmt.Sprintf("field %q is required", r.Field)
}

func checkNotExists(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return true, ""
	}
	return false, fmt.Sprintf("field %q must not be present (got %v)", r.Field, value)
}

// checkRegex matches with search semantics: the pattern may anchor itself.
func checkRegex(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a string matching %s", r.Field, r.Pattern)
	}
	s, ok := value.(string)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not a string, expected a match for %s", r.Field, value, r.Pattern)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return false, fmt.Sprintf("%s has an invalid pattern %q: %v", r.Field, r.Pattern, err)
	}
	if !re.MatchString(s) {
		return false, fmt.Sprintf("%s=%q does not match %s", r.Field, s, r.Pattern)
	}
	return true, ""
}

func checkStringContains(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, must contain one of %v", r.Field, r.Values)
	}
	s, ok := value.(string)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not a string, must contain one of %v", r.Field, value, r.Values)
	}
	haystack := s
	if r.CaseInsensitive {
		haystack = strings.ToLower(haystack)
	}
	for _, candidate := range r.Values {
		needle := fmt.Sprint(candidate)
		if r.CaseInsensitive {
			needle = strings.ToLower(needle)
		}
		if strings.Contains(haystack, needle) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s=%q must contain one of %v", r.Field, s, r.Values)
}

func checkLength(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a string of length %s", r.Field, lengthBounds(r))
	}
	s, ok := value.(string)
	if !ok {
		return false, fmt.Sprintf("%s=%v is not a string, expected length %s", r.Field, value, lengthBounds(r))
	}
	length := utf8.RuneCountInString(s)
	if !withinLength(r, length) {
		return false, fmt.Sprintf("%s length %d not in range %s", r.Field, length, lengthBounds(r))
	}
	return true, ""
}

func checkArrayLength(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, expected an array of length %s", r.Field, lengthBounds(r))
	}
	items, ok := value.([]any)
	if !ok {
		return false, fmt.Sprintf("%s is not an array", r.Field)
	}
	if !withinLength(r, len(items)) {
		return false, fmt.Sprintf("%s array length %d not in range %s", r.Field, len(items), lengthBounds(r))
	}
	return true, ""
}

// Date rules compare ISO-8601 strings lexicographically; the default rule set
// pairs them with a regex format rule.
func checkDateBefore(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a date before %s", r.Field, r.Before)
	}
	date := fmt.Sprint(value)
	if date >= r.Before {
		return false, fmt.Sprintf("%s=%s is not before %s", r.Field, date, r.Before)
	}
	return true, ""
}

func checkDateAfter(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a date after %s", r.Field, r.After)
	}
	date := fmt.Sprint(value)
	if date <= r.After {
		return false, fmt.Sprintf("%s=%s is not after %s", r.Field, date, r.After)
	}
	return true, ""
}

func checkDateRange(r rules.Rule, value any, present bool) (bool, string) {
	if !present {
		return false, fmt.Sprintf("%s is missing, expected a date between %s and %s", r.Field, r.After, r.Before)
	}
	date := fmt.Sprint(value)
	var reasons []string
	if r.After != "" && date <= r.After {
		reasons = append(reasons, fmt.Sprintf("%s=%s is not after %s", r.Field, date, r.After))
	}
	if r.Before != "" && date >= r.Before {
		reasons = append(reasons, fmt.Sprintf("%s=%s is not before %s", r.Field, date, r.Before))
	}
	if len(reasons) > 0 {
		return false, strings.Join(reasons, "; ")
	}
	return true, ""
}

// asFloat reports whether the value is numeric and returns it as float64.
// Strings are never parsed: a numeric check on a string is a type mismatch.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// equalValues compares type-aware: numbers compare numerically regardless of
// the concrete numeric type, everything else must match in both type and value.
func equalValues(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if equalValues(v, candidate) {
			return true
		}
	}
	return false
}

func withinLength(r rules.Rule, length int) bool {
	if r.MinLength != nil && length < *r.MinLength {
		return false
	}
	if r.MaxLength != nil && length > *r.MaxLength {
		return false
	}
	return true
}

func lengthBounds(r rules.Rule) string {
	min, max := "0", "unbounded"
	if r.MinLength != nil {
		min = strconv.Itoa(*r.MinLength)
	}
	if r.MaxLength != nil {
		max = strconv.Itoa(*r.MaxLength)
	}
	return min + "-" + max
}
