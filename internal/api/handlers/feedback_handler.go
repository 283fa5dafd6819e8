package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/internal/storage/models"
	"github.com/feedback-insights/backend/pkg/logger"
)

type Ingester interface {
	Ingest(ctx context.Context, items []insight.FeedbackItem) (*insight.Batch, error)
}

type BatchSource interface {
	Latest() *insight.Batch
}

type RunLister interface {
	ListIngestionRuns(limit int) ([]models.IngestionRun, error)
}

type FeedbackHandler struct {
	ingester Ingester
	batches  BatchSource
	runs     RunLister
}

// NewFeedbackHandler wires the ingestion endpoints. runs may be nil when
// run history is disabled.
func NewFeedbackHandler(ingester Ingester, batches BatchSource, runs RunLister) *FeedbackHandler {
	return &FeedbackHandler{
		ingester: ingester,
		batches:  batches,
		runs:     runs,
	}
}

func (h *FeedbackHandler) Ingest(c *fiber.Ctx) error {
	items, err := insight.DecodeIngestRequest(c.Body())
	if err != nil {
		var verr *insight.ValidationError
		if errors.As(err, &verr) {
			logger.Info("Rejected feedback batch",
				zap.Int("violations", len(verr.Violations)),
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":      verr.Error(),
				"violations": verr.Violations,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	batch, err := h.ingester.Ingest(c.UserContext(), items)
	if err != nil {
		logger.Error("Failed to ingest feedback", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to ingest feedback",
		})
	}

	return c.JSON(fiber.Map{
		"batchId":         batch.ID,
		"analyzedResults": batch.Results,
	})
}

func (h *FeedbackHandler) Latest(c *fiber.Ctx) error {
	batch := h.batches.Latest()
	if batch == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No feedback batch has been ingested yet",
		})
	}

	succeeded, failed := batch.Counts()

	return c.JSON(fiber.Map{
		"batchId":         batch.ID,
		"createdAt":       batch.CreatedAt.UTC().Format(time.RFC3339),
		"total":           batch.Len(),
		"succeeded":       succeeded,
		"failed":          failed,
		"analyzedResults": batch.Results,
	})
}

func (h *FeedbackHandler) ListIngestions(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Ingestion history is disabled",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	runs, err := h.runs.ListIngestionRuns(limit)
	if err != nil {
		logger.Error("Failed to list ingestion runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list ingestion runs",
		})
	}

	return c.JSON(fiber.Map{
		"ingestions": runs,
	})
}
