package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/internal/metrics"
	"github.com/feedback-insights/backend/pkg/logger"
)

// Failure messages recorded on results.
const (
	ErrNoContent   = "No AI content"
	ErrInvalidJSON = "AI output not valid JSON"
	ErrBadSchema   = "AI output does not match insight schema"
)

// Provider is the language-model capability used for extraction.
type Provider interface {
	ExtractInsights(ctx context.Context, text string) (string, error)
}

type Engine struct {
	provider      Provider
	maxInputChars int
}

func NewEngine(provider Provider, maxInputChars int) *Engine {
	return &Engine{
		provider:      provider,
		maxInputChars: maxInputChars,
	}
}

// Analyze never fails: every problem ends up as an insight.Failure outcome
// carrying the item's provenance.
func (e *Engine) Analyze(ctx context.Context, item insight.FeedbackItem) (result insight.AnalysisResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Analysis panicked",
				zap.Int64("item_id", item.ID),
				zap.Any("panic", r),
			)
			result = insight.NewResult(item, insight.Failure{Error: fmt.Sprintf("analysis panicked: %v", r)})
		}

		metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
		switch result.Outcome.(type) {
		case insight.Success:
			metrics.ItemsAnalyzed.WithLabelValues("success").Inc()
		default:
			metrics.ItemsAnalyzed.WithLabelValues("failure").Inc()
		}
	}()

	text := PrepareText(item.Text, e.maxInputChars)

	content, err := e.provider.ExtractInsights(ctx, text)
	if err != nil {
		logger.Warn("Insight extraction failed",
			zap.Int64("item_id", item.ID),
			zap.String("source", item.Source),
			zap.Error(err),
		)
		return insight.NewResult(item, insight.Failure{Error: err.Error()})
	}

	outcome := ParseOutcome(content)
	if f, ok := outcome.(insight.Failure); ok {
		logger.Warn("Unusable insight output",
			zap.Int64("item_id", item.ID),
			zap.String("reason", f.Error),
		)
	}

	return insight.NewResult(item, outcome)
}

type rawInsight struct {
	PainPoints *[]string `json:"painPoints"`
	Summary    *string   `json:"summary"`
	Priority   *string   `json:"priority"`
}

// ParseOutcome turns raw model output into an outcome. A leading ```json and a
// trailing ``` are stripped before parsing; nothing else is repaired.
func ParseOutcome(content string) insight.Outcome {
	if content == "" {
		return insight.Failure{Error: ErrNoContent}
	}

	cleaned := strings.TrimPrefix(content, "```json")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if !json.Valid([]byte(cleaned)) {
		return insight.Failure{Error: ErrInvalidJSON, RawOutput: content}
	}

	var raw rawInsight
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return insight.Failure{Error: ErrBadSchema, RawOutput: content}
	}
	if raw.PainPoints == nil || raw.Summary == nil || raw.Priority == nil {
		return insight.Failure{Error: ErrBadSchema, RawOutput: content}
	}

	priority := insight.Priority(*raw.Priority)
	if !priority.Valid() {
		return insight.Failure{Error: ErrBadSchema, RawOutput: content}
	}

	return insight.Success{
		PainPoints: *raw.PainPoints,
		Summary:    *raw.Summary,
		Priority:   priority,
	}
}
