package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/pkg/logger"
)

type Analyzer interface {
	Analyze(ctx context.Context, item insight.FeedbackItem) insight.AnalysisResult
}

// Evaluator scores insight extraction against hand-labelled feedback.
type Evaluator struct {
	analyzer Analyzer
}

type EvaluationDataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	ID               int64            `json:"id"`
	Text             string           `json:"text"`
	Source           string           `json:"source"`
	ExpectedPriority insight.Priority `json:"expectedPriority"`
	// ExpectedKeywords should appear in the summary or a pain point.
	ExpectedKeywords []string `json:"expectedKeywords"`
}

type ItemScore struct {
	ID            int64
	Succeeded     bool
	FailureReason string
	Priority      insight.Priority
	PriorityMatch bool
	KeywordRecall float64
}

type EvaluationReport struct {
	TotalItems        int
	SucceededCount    int
	FailedCount       int
	PriorityMatches   int
	PriorityAccuracy  float64
	AvgKeywordRecall  float64
	FailuresByReason  map[string]int
	PriorityConfusion map[insight.Priority]map[insight.Priority]int
	Items             []ItemScore
}

func NewEvaluator(analyzer Analyzer) *Evaluator {
	return &Evaluator{
		analyzer: analyzer,
	}
}

func (e *Evaluator) EvaluateItem(ctx context.Context, item DatasetItem) ItemScore {
	result := e.analyzer.Analyze(ctx, insight.FeedbackItem{
		ID:     item.ID,
		Text:   item.Text,
		Source: item.Source,
	})

	score := ItemScore{ID: item.ID}

	switch o := result.Outcome.(type) {
	case insight.Success:
		score.Succeeded = true
		score.Priority = o.Priority
		score.PriorityMatch = item.ExpectedPriority == "" || o.Priority == item.ExpectedPriority
		score.KeywordRecall = keywordRecall(o, item.ExpectedKeywords)
	case insight.Failure:
		score.FailureReason = o.Error
	}

	logger.Debug("Item evaluated",
		zap.Int64("item_id", item.ID),
		zap.Bool("succeeded", score.Succeeded),
		zap.Bool("priority_match", score.PriorityMatch),
		zap.Float64("keyword_recall", score.KeywordRecall),
	)

	return score
}

// RunDatasetEvaluation evaluates every item in order. Failed extractions
// count against accuracy and recall.
func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, dataset *EvaluationDataset) (*EvaluationReport, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &EvaluationReport{
		TotalItems:        len(dataset.Items),
		FailuresByReason:  make(map[string]int),
		PriorityConfusion: make(map[insight.Priority]map[insight.Priority]int),
	}

	var totalRecall float64

	for i, item := range dataset.Items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation interrupted at item %d: %w", i, err)
		}

		score := e.EvaluateItem(ctx, item)
		report.Items = append(report.Items, score)

		if !score.Succeeded {
			report.FailedCount++
			report.FailuresByReason[score.FailureReason]++
			continue
		}

		report.SucceededCount++
		totalRecall += score.KeywordRecall
		if score.PriorityMatch {
			report.PriorityMatches++
		}

		if item.ExpectedPriority != "" {
			row := report.PriorityConfusion[item.ExpectedPriority]
			if row == nil {
				row = make(map[insight.Priority]int)
				report.PriorityConfusion[item.ExpectedPriority] = row
			}
			row[score.Priority]++
		}
	}

	if report.TotalItems > 0 {
		report.PriorityAccuracy = float64(report.PriorityMatches) / float64(report.TotalItems) * 100
		report.AvgKeywordRecall = totalRecall / float64(report.TotalItems)
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalItems),
		zap.Int("succeeded", report.SucceededCount),
		zap.Int("failed", report.FailedCount),
		zap.Float64("priority_accuracy", report.PriorityAccuracy),
	)

	return report, nil
}

func keywordRecall(s insight.Success, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1
	}

	haystack := strings.ToLower(s.Summary + "\n" + strings.Join(s.PainPoints, "\n"))
	found := 0
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k)) {
			found++
		}
	}

	return float64(found) / float64(len(keywords))
}

func LoadDatasetFromJSON(data []byte) (*EvaluationDataset, error) {
	var dataset EvaluationDataset
	err := json.Unmarshal(data, &dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}

	for i, item := range dataset.Items {
		if strings.TrimSpace(item.Text) == "" {
			return nil, fmt.Errorf("dataset item %d has no text", i)
		}
		if item.ExpectedPriority != "" && !item.ExpectedPriority.Valid() {
			return nil, fmt.Errorf("dataset item %d has invalid expectedPriority %q", i, item.ExpectedPriority)
		}
	}

	return &dataset, nil
}

func GenerateReport(report *EvaluationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, `
Insight Extraction Report
=========================

Total Items: %d
- Succeeded: %d
- Failed: %d

Priority Accuracy: %.1f%% (%d / %d)
Average Keyword Recall: %.2f
`,
		report.TotalItems,
		report.SucceededCount,
		report.FailedCount,
		report.PriorityAccuracy, report.PriorityMatches, report.TotalItems,
		report.AvgKeywordRecall,
	)

	if len(report.FailuresByReason) > 0 {
		b.WriteString("\nFailures:\n")
		reasons := make([]string, 0, len(report.FailuresByReason))
		for r := range report.FailuresByReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "- %s: %d\n", r, report.FailuresByReason[r])
		}
	}

	if len(report.PriorityConfusion) > 0 {
		b.WriteString("\nPriority (expected -> got):\n")
		for _, want := range []insight.Priority{insight.PriorityHigh, insight.PriorityMedium, insight.PriorityLow} {
			row := report.PriorityConfusion[want]
			if row == nil {
				continue
			}
			fmt.Fprintf(&b, "- %s: high=%d medium=%d low=%d\n",
				want, row[insight.PriorityHigh], row[insight.PriorityMedium], row[insight.PriorityLow])
		}
	}

	return b.String()
}
