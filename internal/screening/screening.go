// Package screening runs the full hybrid evaluation of one application:
// structured rules through the engine, free-text fields through the LLM
// judge, and the combination of both verdicts into a final result.
package screening

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ketwaroo/appscreener/internal/ai"
	"github.com/ketwaroo/appscreener/internal/engine"
	"github.com/ketwaroo/appscreener/internal/record"
	"github.com/ketwaroo/appscreener/internal/rules"
)

// Result combines the structured verdict with the unstructured one.
type Result struct {
	OverallPassed bool           `json:"overall_passed"`
	OverallScore  float64        `json:"overall_score"`
	Structured    engine.Verdict `json:"structured_evaluation"`
	Unstructured  ai.Verdict     `json:"unstructured_evaluation"`
	Summary       Summary        `json:"summary"`
}

// Summary is the at-a-glance block of the final result.
type Summary struct {
	StructuredPassed            bool    `json:"structured_passed"`
	UnstructuredPassed          bool    `json:"unstructured_passed"`
	StructuredScore             float64 `json:"structured_score"`
	TotalStructuredRules        int     `json:"total_structured_rules"`
	FailedStructuredRules       int     `json:"failed_structured_rules"`
	UnstructuredFieldsEvaluated int     `json:"unstructured_fields_evaluated"`
}

// Screener evaluates applications against a rule set. The judge may be nil
// when unstructured evaluation is disabled; unstructured rules then fail
// closed.
type Screener struct {
	judge  ai.Judge
	logger *zap.Logger
}

func New(judge ai.Judge, logger *zap.Logger) *Screener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screener{judge: judge, logger: logger}
}

// Evaluate runs the structured and unstructured evaluations concurrently and
// combines them. The rule set must be a snapshot owned by this call: the
// evaluation completes on it even if the store is mutated meanwhile.
func (s *Screener) Evaluate(ctx context.Context, rec record.Record, set rules.Set) (*Result, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("rule set is invalid: %w", err)
	}

	structuredRules := set.Structured()
	unstructuredRules := set.Unstructured()

	var structured engine.Verdict
	var unstructured ai.Verdict

	// The structured half is pure computation; only the judge suspends. They
	// have no ordering dependency, so run both and wait.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		structured = engine.Evaluate(rec, structuredRules)
		return nil
	})
	group.Go(func() error {
		unstructured = s.judgeUnstructured(groupCtx, rec, unstructuredRules)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := Combine(structured, unstructured)

	s.logger.Info("evaluation completed",
		zap.Bool("overall_passed", result.OverallPassed),
		zap.Float64("overall_score", result.OverallScore),
		zap.Int("structured_rules", result.Summary.TotalStructuredRules),
		zap.Int("failed_structured_rules", result.Summary.FailedStructuredRules),
		zap.Int("unstructured_fields", result.Summary.UnstructuredFieldsEvaluated),
	)

	return &result, nil
}

// judgeUnstructured routes every unstructured rule to the collaborator.
// Fields absent from the record are skipped: presence requirements belong to
// exists rules. A judge failure fails that field closed rather than crashing
// or silently passing.
func (s *Screener) judgeUnstructured(ctx context.Context, rec record.Record, unstructured rules.Set) ai.Verdict {
	if len(unstructured) == 0 {
		return ai.Verdict{
			Passed:    true,
			Reasoning: "no unstructured evaluation criteria defined",
			Fields:    []ai.FieldVerdict{},
		}
	}

	fields := make([]ai.FieldVerdict, 0, len(unstructured))
	var failed []string

	for _, rule := range unstructured {
		value, ok := rec.Lookup(rule.Field)
		if !ok || value == nil {
			s.logger.Debug("skipping absent unstructured field", zap.String("field", rule.Field))
			continue
		}

		verdict := s.judgeField(ctx, rule, value)
		fields = append(fields, verdict)
		if !verdict.Passed {
			failed = append(failed, verdict.Field)
		}
	}

	if len(failed) > 0 {
		return ai.Verdict{
			Passed:    false,
			Reasoning: fmt.Sprintf("failed fields: %s", strings.Join(failed, ", ")),
			Fields:    fields,
		}
	}

	reasoning := "all judged fields passed"
	if len(fields) == 0 {
		reasoning = "no unstructured fields supplied"
	}
	return ai.Verdict{Passed: true, Reasoning: reasoning, Fields: fields}
}

func (s *Screener) judgeField(ctx context.Context, rule rules.Rule, value any) ai.FieldVerdict {
	if s.judge == nil {
		return ai.FieldVerdict{
			Field:     rule.Field,
			Passed:    false,
			Reasoning: "unstructured evaluation unavailable: no judge configured",
		}
	}

	verdict, err := s.judge.JudgeField(ctx, rule.Field, value, rule.EvaluationCriteria)
	if err != nil {
		s.logger.Warn("unstructured evaluation failed",
			zap.String("field", rule.Field),
			zap.Error(err),
		)
		return ai.FieldVerdict{
			Field:     rule.Field,
			Passed:    false,
			Reasoning: fmt.Sprintf("unstructured evaluation unavailable: %v", err),
		}
	}

	s.logger.Info("unstructured field judged",
		zap.String("field", rule.Field),
		zap.Bool("passed", verdict.Passed),
	)
	return *verdict
}

// Combine merges the two verdicts into the final result. It is pure and
// deterministic. The unstructured verdict counts as one extra rule in the
// combined score; with no structured rules the score is the unstructured
// pass bit alone.
func Combine(structured engine.Verdict, unstructured ai.Verdict) Result {
	passBit := 0
	if unstructured.Passed {
		passBit = 1
	}

	total := len(structured.Details)
	score := float64(passBit)
	if total > 0 {
		score = float64(structured.PassedCount+passBit) / float64(total+1)
	}

	return Result{
		OverallPassed: structured.Passed && unstructured.Passed,
		OverallScore:  score,
		Structured:    structured,
		Unstructured:  unstructured,
		Summary: Summary{
			StructuredPassed:            structured.Passed,
			UnstructuredPassed:          unstructured.Passed,
			StructuredScore:             structured.Score,
			TotalStructuredRules:        total,
			FailedStructuredRules:       structured.FailedCount,
			UnstructuredFieldsEvaluated: len(unstructured.Fields),
		},
	}
}
