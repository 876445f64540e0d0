// Package ai defines the capability interface for the unstructured-field
// collaborator. The engine never talks to a model directly; it hands each
// free-text field to a Judge and accepts either a verdict or a failure.
package ai

import "context"

// FieldVerdict is the collaborator's judgment of one free-text field.
type FieldVerdict struct {
	Field     string `json:"field"`
	Passed    bool   `json:"passed"`
	Reasoning string `json:"reasoning"`
}

// Verdict is the aggregated unstructured-evaluation result.
type Verdict struct {
	Passed    bool           `json:"passed"`
	Reasoning string         `json:"reasoning,omitempty"`
	Fields    []FieldVerdict `json:"field_evaluations"`
}

// Judge evaluates a single free-text field against its criteria. A returned
// error means the judgment could not be produced at all (network, timeout,
// unparseable response); callers decide the failure policy.
type Judge interface {
	JudgeField(ctx context.Context, field string, value any, criteria string) (*FieldVerdict, error)
}
