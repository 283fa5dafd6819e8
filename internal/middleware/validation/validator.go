package validation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	FeedbackPath = "/api/v1/feedback"
	ChatPath     = "/api/v1/chat"
)

// ChatRequest is the body of a REST chat message. The validated request is
// stored in the "chat_request" local.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type Config struct {
	MaxMessageLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 4000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		switch c.Path() {
		case FeedbackPath:
			if !json.Valid(c.Body()) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

		case ChatPath:
			var req ChatRequest
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			req.SessionID = sanitizeString(req.SessionID)
			req.Text = sanitizeString(req.Text)

			if req.SessionID == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "session_id is required",
				})
			}
			if req.Text == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "text is required",
				})
			}
			if utf8.RuneCountInString(req.Text) > cfg.MaxMessageLength {
				cfg.Logger.Warn("Chat message too long",
					zap.String("ip", c.IP()),
					zap.Int("length", utf8.RuneCountInString(req.Text)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Message exceeds maximum length",
				})
			}

			c.Locals("chat_request", req)
		}

		return c.Next()
	}
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
