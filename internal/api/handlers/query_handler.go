package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/middleware/validation"
	"github.com/supportdesk/backend/internal/query"
	"github.com/supportdesk/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
}

func NewQueryHandler(queryEngine *query.Engine) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
	}
}

// HandleAsk expects validation.Ask to have run first.
func (h *QueryHandler) HandleAsk(c *fiber.Ctx) error {
	req, ok := validation.AskFrom(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	response, err := h.queryEngine.ProcessQuery(c.Context(), query.QueryRequest{
		Question: req.Question,
		Email:    req.Email,
	})
	if err != nil {
		logger.Error("Failed to process question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Your question could not be answered or escalated. Please try again.",
		})
	}

	body := fiber.Map{
		"id":         response.ID,
		"question":   response.Question,
		"answer":     response.Answer,
		"matched":    response.Matched,
		"escalated":  response.Escalated,
		"score":      response.Score,
		"latency_ms": response.LatencyMS,
	}
	if response.Escalated {
		body["escalation_id"] = response.EscalationID
	}

	return c.JSON(body)
}
