package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/dispatch"
	"github.com/feedback-insights/backend/internal/middleware/validation"
	"github.com/feedback-insights/backend/internal/storage/models"
	"github.com/feedback-insights/backend/pkg/logger"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, key, text string) dispatch.Reply
}

type QuestionHistory interface {
	GetQuestionHistory(sessionKey string, limit int) ([]models.QuestionRecord, error)
}

type ChatHandler struct {
	dispatcher Dispatcher
	history    QuestionHistory
}

// NewChatHandler wires the REST chat surface. history may be nil.
func NewChatHandler(dispatcher Dispatcher, history QuestionHistory) *ChatHandler {
	return &ChatHandler{
		dispatcher: dispatcher,
		history:    history,
	}
}

// HandleMessage dispatches one chat message. Navigation errors are ordinary
// replies carrying a code, not HTTP errors.
func (h *ChatHandler) HandleMessage(c *fiber.Ctx) error {
	req, ok := c.Locals("chat_request").(validation.ChatRequest)
	if !ok {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		req.SessionID = strings.TrimSpace(req.SessionID)
	}

	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	reply := h.dispatcher.Dispatch(c.UserContext(), req.SessionID, req.Text)

	return c.JSON(reply)
}

func (h *ChatHandler) GetQuestionHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	if h.history == nil {
		return c.JSON(fiber.Map{
			"history": []models.QuestionRecord{},
		})
	}

	history, err := h.history.GetQuestionHistory(sessionID, limit)
	if err != nil {
		logger.Error("Failed to load question history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load question history",
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}
