package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/internal/metrics"
	"github.com/feedback-insights/backend/internal/storage/models"
	"github.com/feedback-insights/backend/pkg/logger"
)

type Analyzer interface {
	Analyze(ctx context.Context, item insight.FeedbackItem) insight.AnalysisResult
}

// Publisher makes a batch the latest one and resets navigation state.
type Publisher interface {
	Publish(b *insight.Batch)
}

type AnswerInvalidator interface {
	InvalidateAnswers(ctx context.Context) error
}

type RunLog interface {
	InsertIngestionRun(run *models.IngestionRun) error
}

type Coordinator struct {
	analyzer    Analyzer
	publisher   Publisher
	concurrency int
	answers     AnswerInvalidator
	runs        RunLog
}

// NewCoordinator wires the batch pipeline. answers and runs may be nil.
func NewCoordinator(analyzer Analyzer, publisher Publisher, concurrency int, answers AnswerInvalidator, runs RunLog) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		analyzer:    analyzer,
		publisher:   publisher,
		concurrency: concurrency,
		answers:     answers,
		runs:        runs,
	}
}

// Ingest analyses every item and publishes the batch. Results keep the input
// order whatever order the provider calls finish in. Nothing is published
// if ctx ends before every item has an outcome.
func (c *Coordinator) Ingest(ctx context.Context, items []insight.FeedbackItem) (*insight.Batch, error) {
	start := time.Now()
	batchID := uuid.New().String()

	logger.Info("Ingesting feedback batch",
		zap.String("batch_id", batchID),
		zap.Int("items", len(items)),
		zap.Int("concurrency", c.concurrency),
	)

	results := make([]insight.AnalysisResult, len(items))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = c.analyzer.Analyze(ctx, item)
			return nil
		})
	}
	// Workers report failures through the outcome and always return nil.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to analyze batch: %w", err)
	}

	if err := ctx.Err(); err != nil {
		metrics.IngestionsTotal.WithLabelValues("cancelled").Inc()
		logger.Warn("Ingestion cancelled before publish",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("ingestion cancelled: %w", err)
	}

	batch := &insight.Batch{
		ID:        batchID,
		Items:     append([]insight.FeedbackItem(nil), items...),
		Results:   results,
		CreatedAt: time.Now(),
	}

	c.publisher.Publish(batch)

	elapsed := time.Since(start)
	succeeded, failed := batch.Counts()

	metrics.IngestionsTotal.WithLabelValues("published").Inc()
	metrics.IngestionDuration.Observe(elapsed.Seconds())

	logger.Info("Feedback batch published",
		zap.String("batch_id", batchID),
		zap.Uint64("generation", batch.Generation),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
	)

	c.afterPublish(batch, elapsed, succeeded, failed)

	return batch, nil
}

// afterPublish updates the side channels. Their failures never undo a publish.
func (c *Coordinator) afterPublish(batch *insight.Batch, elapsed time.Duration, succeeded, failed int) {
	if c.answers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.answers.InvalidateAnswers(ctx); err != nil {
			logger.Warn("Failed to invalidate answer cache", zap.Error(err))
		}
		cancel()
	}

	if c.runs != nil {
		err := c.runs.InsertIngestionRun(&models.IngestionRun{
			BatchID:    batch.ID,
			ItemCount:  batch.Len(),
			Succeeded:  succeeded,
			Failed:     failed,
			DurationMS: elapsed.Milliseconds(),
			CreatedAt:  batch.CreatedAt,
		})
		if err != nil {
			logger.Warn("Failed to record ingestion run", zap.Error(err))
		}
	}
}
