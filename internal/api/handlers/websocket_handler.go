package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/pkg/logger"
)

type WebSocketHandler struct {
	dispatcher Dispatcher
}

func NewWebSocketHandler(dispatcher Dispatcher) *WebSocketHandler {
	return &WebSocketHandler{
		dispatcher: dispatcher,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection serves one chat conversation. Each inbound message gets
// exactly one reply message.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	logger.Info("WebSocket connection established", zap.String("session", sessionID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session", sessionID))
	}()

	if err := c.WriteJSON(map[string]interface{}{
		"type":       "ready",
		"session_id": sessionID,
	}); err != nil {
		logger.Error("Failed to send ready message", zap.Error(err))
		return
	}

	h.serve(c, sessionID)
}

type jsonConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// serve answers messages until the socket closes. Reads run on their own
// goroutine so a disconnect cancels the context of the command in flight.
func (h *WebSocketHandler) serve(conn jsonConn, sessionID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbound := make(chan inboundMessage)
	go func() {
		defer cancel()
		defer close(inbound)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Error("Failed to read WebSocket message", zap.Error(err))
				}
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range inbound {
		if msg.Type != "" && msg.Type != "message" {
			h.sendError(conn, "Unsupported message type")
			continue
		}

		reply := h.dispatcher.Dispatch(ctx, sessionID, msg.Text)
		if ctx.Err() != nil {
			return
		}

		err := conn.WriteJSON(map[string]interface{}{
			"type":  "reply",
			"reply": reply,
		})
		if err != nil {
			logger.Error("Failed to write WebSocket reply", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) sendError(conn jsonConn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := conn.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
