package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/escalation"
	"github.com/supportdesk/backend/internal/middleware/validation"
	"github.com/supportdesk/backend/internal/storage/models"
	"github.com/supportdesk/backend/pkg/logger"
)

type StaffHandler struct {
	store    *escalation.Store
	workflow *escalation.Workflow
}

func NewStaffHandler(store *escalation.Store, workflow *escalation.Workflow) *StaffHandler {
	return &StaffHandler{
		store:    store,
		workflow: workflow,
	}
}

type recordView struct {
	ID         int64   `json:"id"`
	Question   string  `json:"question"`
	Email      string  `json:"email"`
	State      string  `json:"state"`
	Escalated  bool    `json:"escalated"`
	Resolution *string `json:"resolution"`
	Flag       *string `json:"flag"`
}

func toView(r *models.QueryRecord) recordView {
	view := recordView{
		ID:        r.ID,
		Question:  r.Question,
		Email:     r.Email,
		State:     r.State.String(),
		Escalated: r.Escalated(),
	}
	if r.Resolution != nil {
		view.Resolution = &r.Resolution.Text
		view.Flag = &r.Resolution.Flag
	}
	return view
}

func (h *StaffHandler) ListPending(c *fiber.Ctx) error {
	records, err := h.store.ListPending(c.Context())
	if err != nil {
		logger.Error("Failed to list pending queries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list pending queries",
		})
	}

	views := make([]recordView, 0, len(records))
	for i := range records {
		views = append(views, toView(&records[i]))
	}

	return c.JSON(fiber.Map{
		"queries": views,
		"count":   len(views),
	})
}

func (h *StaffHandler) GetQuery(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query id",
		})
	}

	record, err := h.store.Get(c.Context(), id)
	if err != nil {
		return h.storageError(c, err, id)
	}

	return c.JSON(toView(record))
}

// Resolve expects validation.Resolve to have run first.
func (h *StaffHandler) Resolve(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query id",
		})
	}

	req, ok := validation.ResolveFrom(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	record, err := h.workflow.Resolve(c.Context(), id, req.Resolution, req.Flag)
	if err != nil {
		if errors.Is(err, escalation.ErrInvalidResolution) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return h.storageError(c, err, id)
	}

	return c.JSON(toView(record))
}

func (h *StaffHandler) storageError(c *fiber.Ctx, err error, id int64) error {
	if errors.Is(err, models.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Query not found",
		})
	}

	logger.Error("Staff query operation failed", zap.Error(err), zap.Int64("query_id", id))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Query operation failed",
	})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
