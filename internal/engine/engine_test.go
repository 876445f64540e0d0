package engine

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/ketwaroo/appscreener/internal/record"
	"github.com/ketwaroo/appscreener/internal/rules"
)

func num(v float64) *float64 { return &v }

func count(v int) *int { return &v }

func mustRecord(t *testing.T, raw string) record.Record {
	t.Helper()
	rec, err := record.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parsing record: %s", err)
	}
	return rec
}

func TestEvaluateEligibleApplicant(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{"nationality": "Mauritian", "age": 30}`)
	set := rules.Set{
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
		{Field: "age", Type: rules.TypeRange, Min: num(18), Max: num(45)},
	}

	verdict := Evaluate(rec, set)

	if !verdict.Passed {
		t.Fatalf("expected the applicant to pass: %+v", verdict)
	}
	if verdict.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", verdict.Score)
	}
	if verdict.PassedCount != 2 || verdict.FailedCount != 0 {
		t.Fatalf("unexpected counts: %+v", verdict)
	}
	for _, outcome := range verdict.Details {
		if outcome.Reason != "" {
			t.Fatalf("passing outcome must not carry a reason: %+v", outcome)
		}
	}
}

func TestEvaluateOverAgeApplicant(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{"nationality": "Mauritian", "age": 47}`)
	set := rules.Set{
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
		{Field: "age", Type: rules.TypeRange, Min: num(18), Max: num(45)},
	}

	verdict := Evaluate(rec, set)

	if verdict.Passed {
		t.Fatalf("expected the applicant to fail")
	}
	if verdict.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %v", verdict.Score)
	}

	ageOutcome := verdict.Details[1]
	if ageOutcome.Passed {
		t.Fatalf("expected the age rule to fail")
	}
	if !strings.Contains(ageOutcome.Reason, "47") || !strings.Contains(ageOutcome.Reason, "18-45") {
		t.Fatalf("expected the reason to name the value and the bounds, got %q", ageOutcome.Reason)
	}
}

func TestEvaluateMissingFieldFailsWithReason(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{"age": 30}`)
	set := rules.Set{
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
	}

	verdict := Evaluate(rec, set)
	if verdict.Passed {
		t.Fatalf("expected a failure for the missing field")
	}
	if !strings.Contains(verdict.Details[0].Reason, "missing") {
		t.Fatalf("expected the reason to say the field is missing, got %q", verdict.Details[0].Reason)
	}
}

func TestEvaluateOrComposite(t *testing.T) {
	t.Parallel()

	orRule := rules.Rule{Type: rules.TypeOr, Rules: []rules.Rule{
		{Field: "phone_office", Type: rules.TypeExists},
		{Field: "phone_home", Type: rules.TypeExists},
		{Field: "phone_mobile", Type: rules.TypeExists},
	}}

	withHome := mustRecord(t, `{"phone_home": "2101234"}`)
	verdict := Evaluate(withHome, rules.Set{orRule})
	if !verdict.Passed {
		t.Fatalf("expected one satisfied alternative to pass the or rule: %+v", verdict)
	}

	without := mustRecord(t, `{"name": "Jane"}`)
	verdict = Evaluate(without, rules.Set{orRule})
	if verdict.Passed {
		t.Fatalf("expected the or rule to fail with no alternatives satisfied")
	}
	reason := verdict.Details[0].Reason
	if !strings.Contains(reason, "no alternative passed") {
		t.Fatalf("unexpected or failure reason: %q", reason)
	}
	for _, field := range []string{"phone_office", "phone_home", "phone_mobile"} {
		if !strings.Contains(reason, field) {
			t.Fatalf("expected the reason to mention %s, got %q", field, reason)
		}
	}
}

func TestEvaluateAndCompositeCollectsAllFailures(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{"post_applied_for": "Clerk"}`)
	set := rules.Set{{Type: rules.TypeAnd, Rules: []rules.Rule{
		{Field: "post_applied_for", Type: rules.TypeExists},
		{Field: "ministry_department", Type: rules.TypeExists},
		{Field: "date_of_advertisement", Type: rules.TypeExists},
	}}}

	verdict := Evaluate(rec, set)
	if verdict.Passed {
		t.Fatalf("expected the and rule to fail")
	}
	reason := verdict.Details[0].Reason
	if !strings.Contains(reason, "ministry_department") || !strings.Contains(reason, "date_of_advertisement") {
		t.Fatalf("expected every failing child in the reason, got %q", reason)
	}
	if strings.Contains(reason, "post_applied_for") {
		t.Fatalf("passing child must not appear in the reason: %q", reason)
	}
}

func TestEvaluateOptionalAndGroup(t *testing.T) {
	t.Parallel()

	group := rules.Rule{Type: rules.TypeOptionalAnd, Rules: []rules.Rule{
		{Field: "advanced_level_exams", Type: rules.TypeExists},
		{Field: "advanced_level_exams", Type: rules.TypeArrayLength, MinLength: count(1)},
	}}

	// No governed field supplied: the group is skipped and passes.
	absent := mustRecord(t, `{"name": "Jane"}`)
	if verdict := Evaluate(absent, rules.Set{group}); !verdict.Passed {
		t.Fatalf("expected the optional group to be skipped: %+v", verdict)
	}

	// One governed field supplied: the whole group binds.
	supplied := mustRecord(t, `{"advanced_level_exams": []}`)
	verdict := Evaluate(supplied, rules.Set{group})
	if verdict.Passed {
		t.Fatalf("expected the bound group to fail on the empty array")
	}
}

func TestEvaluateNotComposite(t *testing.T) {
	t.Parallel()

	notRule := rules.Rule{Type: rules.TypeNot, Rule: &rules.Rule{
		Field: "court_conviction", Type: rules.TypeBoolean, Value: true,
	}}

	clean := mustRecord(t, `{"court_conviction": false}`)
	if verdict := Evaluate(clean, rules.Set{notRule}); !verdict.Passed {
		t.Fatalf("expected not rule to pass when its child fails: %+v", verdict)
	}

	convicted := mustRecord(t, `{"court_conviction": true}`)
	verdict := Evaluate(convicted, rules.Set{notRule})
	if verdict.Passed {
		t.Fatalf("expected not rule to fail when its child passes")
	}
	if !strings.Contains(verdict.Details[0].Reason, "expected court_conviction to fail") {
		t.Fatalf("unexpected not failure reason: %q", verdict.Details[0].Reason)
	}
}

func TestEvaluateOptionalPrimitiveRule(t *testing.T) {
	t.Parallel()

	weight := rules.Rule{Field: "weight", Type: rules.TypeRange, Min: num(30), Max: num(200), Optional: true}

	absent := mustRecord(t, `{"name": "Jane"}`)
	if verdict := Evaluate(absent, rules.Set{weight}); !verdict.Passed {
		t.Fatalf("expected the optional rule to auto-pass when absent")
	}

	supplied := mustRecord(t, `{"weight": 500}`)
	if verdict := Evaluate(supplied, rules.Set{weight}); verdict.Passed {
		t.Fatalf("expected the optional rule to bind when supplied")
	}
}

func TestEvaluateArrayMatch(t *testing.T) {
	t.Parallel()

	rule := rules.Rule{
		Field:      "ordinary_level_exams.*.subjects",
		Type:       rules.TypeOneOf,
		MatchField: "subject",
		MatchValue: "Mathematics",
		CheckField: "grade",
		Values:     []any{"A", "B", "C", "1", "2", "3"},
	}

	tests := []struct {
		name       string
		raw        string
		wantPassed bool
		wantReason string
	}{
		{
			name: "acceptable grade in second exam sitting",
			raw: `{"ordinary_level_exams": [
				{"subjects": [{"subject": "French", "grade": "5"}]},
				{"subjects": [{"subject": "Mathematics", "grade": "2"}]}
			]}`,
			wantPassed: true,
		},
		{
			name: "subject found with unacceptable grade",
			raw: `{"ordinary_level_exams": [
				{"subjects": [{"subject": "Mathematics", "grade": "7"}]}
			]}`,
			wantPassed: false,
			wantReason: "found Mathematics but its grade is not in",
		},
		{
			name: "subject never sat",
			raw: `{"ordinary_level_exams": [
				{"subjects": [{"subject": "French", "grade": "1"}]}
			]}`,
			wantPassed: false,
			wantReason: "could not find Mathematics",
		},
		{
			name:       "path missing entirely",
			raw:        `{"name": "Jane"}`,
			wantPassed: false,
			wantReason: "not found in record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verdict := Evaluate(mustRecord(t, tt.raw), rules.Set{rule})
			if verdict.Passed != tt.wantPassed {
				t.Fatalf("passed = %t, want %t (%+v)", verdict.Passed, tt.wantPassed, verdict.Details)
			}
			if tt.wantReason != "" && !strings.Contains(verdict.Details[0].Reason, tt.wantReason) {
				t.Fatalf("expected reason containing %q, got %q", tt.wantReason, verdict.Details[0].Reason)
			}
		})
	}
}

func TestEvaluateEmptySetPassesVacuously(t *testing.T) {
	t.Parallel()

	verdict := Evaluate(mustRecord(t, `{"name": "Jane"}`), rules.Set{})
	if !verdict.Passed || verdict.Score != 1.0 {
		t.Fatalf("expected a vacuous pass with score 1.0, got %+v", verdict)
	}
	if len(verdict.Details) != 0 {
		t.Fatalf("expected no details, got %d", len(verdict.Details))
	}
}

func TestEvaluateSkipsUnstructuredRules(t *testing.T) {
	t.Parallel()

	set := rules.Set{
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
		{Field: "conviction_details", Type: rules.TypeUnstructured, EvaluationCriteria: "assess it"},
	}
	verdict := Evaluate(mustRecord(t, `{"nationality": "Mauritian"}`), set)

	if len(verdict.Details) != 1 {
		t.Fatalf("expected the unstructured rule to be excluded, got %d details", len(verdict.Details))
	}
	if !verdict.Passed || verdict.Score != 1.0 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestEvaluateUnknownTypeFailsThatRuleOnly(t *testing.T) {
	t.Parallel()

	set := rules.Set{
		{Field: "age", Type: "fuzzy_match"},
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
	}
	verdict := Evaluate(mustRecord(t, `{"nationality": "Mauritian", "age": 30}`), set)

	if verdict.Details[0].Passed {
		t.Fatalf("expected the unknown-type rule to fail")
	}
	if !strings.Contains(verdict.Details[0].Reason, "unknown rule type: fuzzy_match") {
		t.Fatalf("unexpected reason: %q", verdict.Details[0].Reason)
	}
	if !verdict.Details[1].Passed {
		t.Fatalf("expected the following rule to still be evaluated")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{
		"nationality": "Mauritian",
		"age": 47,
		"email": "jane@example",
		"phone_mobile": "2101234"
	}`)
	set := rules.Set{
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
		{Field: "age", Type: rules.TypeRange, Min: num(18), Max: num(45)},
		{Field: "email", Type: rules.TypeRegex, Pattern: `^[\w\.-]+@[\w\.-]+\.\w+$`},
		{Type: rules.TypeOr, Rules: []rules.Rule{
			{Field: "phone_home", Type: rules.TypeExists},
			{Field: "phone_mobile", Type: rules.TypeExists},
		}},
	}

	first := Evaluate(rec, set)
	for i := 0; i < 10; i++ {
		if again := Evaluate(rec, set); !reflect.DeepEqual(again, first) {
			t.Fatalf("evaluation is not deterministic: %+v vs %+v", again, first)
		}
	}
}

// Composite semantics hold for arbitrary child pass/fail vectors.
func TestCompositeTruthTables(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(5)
		rec := record.Record{}
		children := make([]rules.Rule, n)
		anyPass, allPass := false, true

		for j := 0; j < n; j++ {
			field := string(rune('a' + j))
			pass := rng.Intn(2) == 0
			if pass {
				rec[field] = "x"
				anyPass = true
			} else {
				allPass = false
			}
			children[j] = rules.Rule{Field: field, Type: rules.TypeExists}
		}

		andVerdict := Evaluate(rec, rules.Set{{Type: rules.TypeAnd, Rules: children}})
		if andVerdict.Passed != allPass {
			t.Fatalf("and over %d children: passed = %t, want %t", n, andVerdict.Passed, allPass)
		}

		orVerdict := Evaluate(rec, rules.Set{{Type: rules.TypeOr, Rules: children}})
		if orVerdict.Passed != anyPass {
			t.Fatalf("or over %d children: passed = %t, want %t", n, orVerdict.Passed, anyPass)
		}
	}
}

// A numeric rule missing its bounds is malformed; it must fail with a
// diagnostic reason and never abort the rules after it.
func TestEvaluateUnboundedNumericRuleFailsThatRuleOnly(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{"age": 30, "weight": 70, "height": 180, "nationality": "Mauritian"}`)
	set := rules.Set{
		{Field: "age", Type: rules.TypeRange},
		{Field: "weight", Type: rules.TypeMin},
		{Field: "height", Type: rules.TypeMax},
		{Field: "nationality", Type: rules.TypeExactMatch, Value: "Mauritian"},
	}

	verdict := Evaluate(rec, set)

	wantReasons := []string{"missing min or max", "missing min", "missing max"}
	for i, want := range wantReasons {
		if verdict.Details[i].Passed {
			t.Fatalf("expected the malformed rule %d to fail", i)
		}
		if !strings.Contains(verdict.Details[i].Reason, want) {
			t.Fatalf("expected reason containing %q, got %q", want, verdict.Details[i].Reason)
		}
	}
	if !verdict.Details[3].Passed {
		t.Fatalf("expected the rule after the malformed ones to still be evaluated")
	}
	if verdict.PassedCount != 1 || verdict.FailedCount != 3 {
		t.Fatalf("unexpected counts: %+v", verdict)
	}
}

// Appending a failing rule can never raise passed_count or the score.
func TestFailingRuleNeverRaisesScore(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 100; i++ {
		rec := record.Record{}
		n := 1 + rng.Intn(6)
		set := make(rules.Set, 0, n)

		for j := 0; j < n; j++ {
			field := string(rune('a' + j))
			if rng.Intn(2) == 0 {
				rec[field] = "x"
			}
			set = append(set, rules.Rule{Field: field, Type: rules.TypeExists})
		}

		before := Evaluate(rec, set)
		extended := append(set.Clone(), rules.Rule{Field: "never_supplied", Type: rules.TypeExists})
		after := Evaluate(rec, extended)

		if after.PassedCount != before.PassedCount {
			t.Fatalf("a failing rule changed passed_count: %d -> %d", before.PassedCount, after.PassedCount)
		}
		if after.Score > before.Score {
			t.Fatalf("a failing rule raised the score: %v -> %v", before.Score, after.Score)
		}
		if after.FailedCount != before.FailedCount+1 {
			t.Fatalf("expected exactly one more failure, got %d -> %d", before.FailedCount, after.FailedCount)
		}
	}
}

func TestScoreIsPassedOverTotal(t *testing.T) {
	t.Parallel()

	rec := mustRecord(t, `{"a": 1, "b": 1}`)
	set := rules.Set{
		{Field: "a", Type: rules.TypeExists},
		{Field: "b", Type: rules.TypeExists},
		{Field: "c", Type: rules.TypeExists},
		{Field: "d", Type: rules.TypeExists},
	}

	verdict := Evaluate(rec, set)
	if verdict.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %v", verdict.Score)
	}
	if verdict.PassedCount != 2 || verdict.FailedCount != 2 {
		t.Fatalf("unexpected counts: %+v", verdict)
	}
}
