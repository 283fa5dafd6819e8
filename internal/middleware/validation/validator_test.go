package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxMessageLength: 10}))
	app.Post(FeedbackPath, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post(ChatPath, func(c *fiber.Ctx) error {
		req := c.Locals("chat_request").(ChatRequest)
		return c.SendString(req.SessionID + "|" + req.Text)
	})
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestRejectsUnsupportedContentType(t *testing.T) {
	status, _ := post(t, newTestApp(), FeedbackPath, "text/plain", `{}`)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
}

func TestFeedbackRequiresJSON(t *testing.T) {
	app := newTestApp()

	status, body := post(t, app, FeedbackPath, "application/json", `{"feedback": [`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "Invalid JSON format")

	status, _ = post(t, app, FeedbackPath, "application/json", `{"feedback": []}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestChatValidation(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"ok", `{"session_id":" s1 ","text":" /help "}`, fiber.StatusOK, "s1|/help"},
		{"missing session", `{"text":"/help"}`, fiber.StatusBadRequest, "session_id is required"},
		{"missing text", `{"session_id":"s1","text":"  "}`, fiber.StatusBadRequest, "text is required"},
		{"too long", `{"session_id":"s1","text":"ééééééééééé"}`, fiber.StatusBadRequest, "maximum length"},
		{"not json", `hello`, fiber.StatusBadRequest, "Invalid JSON format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, app, ChatPath, "application/json", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, body, tt.wantBody)
		})
	}
}
