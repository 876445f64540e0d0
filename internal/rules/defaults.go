package rules

// Default returns the built-in rule set for public-service job applications.
// The store falls back to it when no rules file exists and the reset operation
// restores it. Returned as a fresh copy so callers can never mutate the source.
func Default() Set {
	return defaultSet.Clone()
}

func num(v float64) *float64 { return &v }

func count(v int) *int { return &v }

var defaultSet = Set{
	// Basic eligibility.
	{Field: "nationality", Type: TypeExactMatch, Value: "Mauritian"},
	{Field: "age", Type: TypeRange, Min: num(18), Max: num(45)},
	{Field: "date_of_birth", Type: TypeRegex, Pattern: `^\d{4}-\d{2}-\d{2}$`},
	{Field: "national_identity_no", Type: TypeRegex, Pattern: `^[A-Z0-9]{14,20}$`},
	{Field: "national_identity_no", Type: TypeLengthCheck, MinLength: count(14), MaxLength: count(20)},

	// Contact information.
	{Field: "email", Type: TypeRegex, Pattern: `^[\w\.-]+@[\w\.-]+\.\w+$`},
	{Field: "phone_mobile", Type: TypeRegex, Pattern: `^[0-9]{7,8}$`},
	{Field: "residential_address", Type: TypeStringContains, Values: []any{"Road", "Street", "Avenue", "Lane"}, CaseInsensitive: true},
	{Field: "residential_address", Type: TypeLengthCheck, MinLength: count(10)},
	{Type: TypeOr, Rules: []Rule{
		{Field: "phone_office", Type: TypeExists},
		{Field: "phone_home", Type: TypeExists},
		{Field: "phone_mobile", Type: TypeExists},
	}},

	// Application information.
	{Type: TypeAnd, Rules: []Rule{
		{Field: "post_applied_for", Type: TypeExists},
		{Field: "ministry_department", Type: TypeExists},
		{Field: "date_of_advertisement", Type: TypeRegex, Pattern: `^\d{4}-\d{2}-\d{2}$`},
		{Field: "date_of_advertisement", Type: TypeDateRange, After: "2020-01-01", Before: "2030-12-31"},
	}},

	// Qualifications: ordinary level.
	{Type: TypeAnd, Rules: []Rule{
		{Field: "ordinary_level_exams", Type: TypeExists},
		{Field: "ordinary_level_exams", Type: TypeArrayLength, MinLength: count(1)},
		{Field: "ordinary_level_exams.0.subjects", Type: TypeExists},
		{Field: "ordinary_level_exams.0.subjects", Type: TypeArrayLength, MinLength: count(5)},
		{Field: "ordinary_level_exams.*.subjects", Type: TypeOneOf, MatchField: "subject", MatchValue: "Mathematics", CheckField: "grade", Values: []any{"A", "B", "C", "1", "2", "3"}},
		{Field: "ordinary_level_exams.*.subjects", Type: TypeOneOf, MatchField: "subject", MatchValue: "English Language", CheckField: "grade", Values: []any{"1", "2", "3", "A", "B", "C"}},
	}},

	// Qualifications: advanced level, binding only when supplied.
	{Type: TypeOptionalAnd, Rules: []Rule{
		{Field: "advanced_level_exams", Type: TypeExists},
		{Field: "advanced_level_exams", Type: TypeArrayLength, MinLength: count(1)},
		{Field: "advanced_level_exams.0.subjects", Type: TypeExists},
		{Field: "advanced_level_exams.*.subjects", Type: TypeOneOf, MatchField: "subject", MatchValue: "Mathematics", CheckField: "grade", Values: []any{"A", "B", "C"}},
		{Field: "advanced_level_exams.*.subjects", Type: TypeOneOf, MatchField: "subject", MatchValue: "English Language", CheckField: "grade", Values: []any{"1", "2", "3", "A+", "B", "C"}},
	}},

	// Higher qualifications.
	{Type: TypeOr, Rules: []Rule{
		{Field: "technical_vocational_qualifications", Type: TypeExists},
		{Field: "diploma_qualifications", Type: TypeExists},
		{Field: "degree_qualifications", Type: TypeExists},
		{Field: "degree_qualifications.*.country", Type: TypeOneOf, Values: []any{"Mauritius", "UK", "USA", "Canada", "Australia", "France"}},
		{Field: "post_degree_qualifications", Type: TypeExists},
	}},

	// Employment history.
	{Type: TypeOr, Rules: []Rule{
		{Field: "current_government_employment", Type: TypeExists},
		{Field: "previous_government_employment", Type: TypeExists},
		{Field: "other_employment", Type: TypeExists},
	}},
	{Field: "current_government_employment.date_of_appointment", Type: TypeRegex, Pattern: `^\d{4}-\d{2}-\d{2}$`, Optional: true},
	{Field: "previous_government_employment.0.start_date", Type: TypeRegex, Pattern: `^\d{4}-\d{2}-\d{2}$`, Optional: true},
	{Field: "current_government_employment.start_date", Type: TypeDateRange, After: "1990-01-01", Optional: true},

	// Legal and conduct declarations.
	{Field: "investigation_enquiry", Type: TypeBoolean, Value: false},
	{Field: "court_conviction", Type: TypeBoolean, Value: false},
	{Field: "resigned_retired_dismissed", Type: TypeBoolean, Value: false},

	// Identity plausibility checks.
	{Field: "surname", Type: TypeLengthCheck, MinLength: count(2), MaxLength: count(50)},
	{Field: "other_names", Type: TypeLengthCheck, MinLength: count(2), MaxLength: count(100)},
	{Field: "weight", Type: TypeRange, Min: num(30), Max: num(200), Optional: true},
	{Field: "height", Type: TypeRange, Min: num(120), Max: num(220), Optional: true},

	// Free-text fields judged by the LLM collaborator.
	{
		Field:              "investigation_details",
		Type:               TypeUnstructured,
		Description:        "Details about any investigation or enquiry",
		EvaluationCriteria: "Assess if the investigation details indicate any serious misconduct or character issues that would disqualify the candidate",
	},
	{
		Field:              "conviction_details",
		Type:               TypeUnstructured,
		Description:        "Details about any court conviction",
		EvaluationCriteria: "Evaluate if the conviction details show serious criminal activity that would make the candidate unsuitable for government employment",
	},
	{
		Field:              "resignation_details",
		Type:               TypeUnstructured,
		Description:        "Details about resignation, retirement, or dismissal from previous employment",
		EvaluationCriteria: "Determine if the resignation/dismissal details indicate poor performance, misconduct, or other issues that would affect suitability",
	},
	{
		Field:              "other_qualifications",
		Type:               TypeUnstructured,
		Description:        "Additional qualifications not captured in structured fields",
		EvaluationCriteria: "Assess if these additional qualifications are relevant and valuable for the applied position",
	},
}
