package handlers

import (
	"context"
	"unicode"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/middleware/validation"
	"github.com/supportdesk/backend/internal/query"
	"github.com/supportdesk/backend/pkg/logger"
)

type WebSocketHandler struct {
	queryEngine *query.Engine
	validation  validation.Config
}

func NewWebSocketHandler(queryEngine *query.Engine, cfg validation.Config) *WebSocketHandler {
	return &WebSocketHandler{
		queryEngine: queryEngine,
		validation:  cfg,
	}
}

type askMessage struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	Email    string `json:"email"`
}

// HandleConnection answers "ask" messages, streaming the answer word by
// word and finishing with a "complete" message.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Debug("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Debug("WebSocket connection closed")
	}()

	for {
		var msg askMessage
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if msg.Type != "ask" {
			continue
		}

		req := validation.AskRequest{Question: msg.Question, Email: msg.Email}
		if reason, ok := validation.CheckAsk(h.validation, &req); !ok {
			h.sendError(c, reason)
			continue
		}

		if err := h.streamAnswer(c, req); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Your question could not be answered or escalated. Please try again.")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, req validation.AskRequest) error {
	if err := c.WriteJSON(map[string]interface{}{"type": "status", "status": "matching"}); err != nil {
		return err
	}

	response, err := h.queryEngine.ProcessQuery(context.Background(), query.QueryRequest{
		Question: req.Question,
		Email:    req.Email,
	})
	if err != nil {
		return err
	}

	for _, chunk := range splitChunks(response.Answer) {
		if err := c.WriteJSON(map[string]interface{}{"type": "chunk", "content": chunk}); err != nil {
			return err
		}
	}

	complete := map[string]interface{}{
		"type":      "complete",
		"id":        response.ID,
		"answer":    response.Answer,
		"matched":   response.Matched,
		"escalated": response.Escalated,
		"score":     response.Score,
	}
	if response.Escalated {
		complete["escalation_id"] = response.EscalationID
	}
	return c.WriteJSON(complete)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	_ = c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// splitChunks cuts text after each whitespace run, so concatenating the
// chunks gives back the exact text, newlines included.
func splitChunks(text string) []string {
	var chunks []string
	start := 0
	inSpace, word := false, false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space {
			if inSpace && word {
				chunks = append(chunks, text[start:i])
				start = i
			}
			word = true
		}
		inSpace = space
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}
