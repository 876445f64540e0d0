package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/ketwaroo/appscreener/internal/ai"
	"github.com/ketwaroo/appscreener/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Judge evaluates free-text application fields with Gemini. It implements
// ai.Judge.
type Judge struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	position  string
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	defaultPosition     = "a public-service position"
)

func NewJudge(generator contentGenerator, maxLogLength int, log *zap.Logger) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Judge{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// SetPosition supplies the applied-for position as prompt context. Call it
// before judging; the judge is not safe for concurrent reconfiguration.
func (j *Judge) SetPosition(position string) {
	j.position = strings.TrimSpace(position)
}

// JudgeField asks the model to evaluate one field value against its criteria.
func (j *Judge) JudgeField(ctx context.Context, field string, value any, criteria string) (*ai.FieldVerdict, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("field name is required")
	}
	if strings.TrimSpace(criteria) == "" {
		return nil, fmt.Errorf("evaluation criteria are required for field %q", field)
	}

	valueJSON, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal field value: %w", err)
	}

	prompt := buildPrompt(j.position, field, string(valueJSON), criteria)

	j.logger.Debug("gemini judge request",
		zap.String("field", field),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("gemini judge response",
		zap.String("field", field),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, j.maxLogLen)),
	)

	verdict, err := parseResponse(field, raw)
	if err != nil {
		return nil, err
	}

	return verdict, nil
}

func buildPrompt(position, field, valueJSON, criteria string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Field {{FIELD}} of an application for {{POSITION}}:\n{{VALUE}}\n\nCriteria: {{CRITERIA}}\n\nJSON Response:"
	}

	if position == "" {
		position = defaultPosition
	}

	prompt := strings.ReplaceAll(template, "{{POSITION}}", position)
	prompt = strings.ReplaceAll(prompt, "{{FIELD}}", field)
	prompt = strings.ReplaceAll(prompt, "{{VALUE}}", valueJSON)
	prompt = strings.ReplaceAll(prompt, "{{CRITERIA}}", criteria)
	return prompt
}

// judgeResponse is the JSON shape the prompt demands from the model.
type judgeResponse struct {
	Assessment string `mapstructure:"assessment"`
	Reasoning  string `mapstructure:"reasoning"`
}

func parseResponse(field, raw string) (*ai.FieldVerdict, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	// Models occasionally return booleans or bare words where strings are
	// expected; the weakly-typed decode absorbs that.
	var resp judgeResponse
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &resp,
	})
	if err != nil {
		return nil, fmt.Errorf("build response decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	assessment := strings.ToUpper(strings.TrimSpace(resp.Assessment))
	if assessment != "PASS" && assessment != "FAIL" {
		return nil, fmt.Errorf("gemini response has no usable assessment (got %q)", resp.Assessment)
	}

	return &ai.FieldVerdict{
		Field:     field,
		Passed:    assessment == "PASS",
		Reasoning: strings.TrimSpace(resp.Reasoning),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
