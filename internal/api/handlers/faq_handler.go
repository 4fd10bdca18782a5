package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/kb"
	"github.com/toanlq204/IT-helpdesk-bot/internal/metrics"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

type FAQHandler struct {
	kb *kb.Service
}

func NewFAQHandler(kbService *kb.Service) *FAQHandler {
	return &FAQHandler{
		kb: kbService,
	}
}

func (h *FAQHandler) HandleAddFAQ(c *fiber.Ctx) error {
	var req kb.FAQ

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "FAQ text is required",
		})
	}

	snippetID, err := h.kb.AddFAQ(c.Context(), req)
	if err != nil {
		logger.Error("Failed to add FAQ", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add FAQ",
		})
	}

	metrics.FAQsIngested.Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"snippet_id": snippetID,
	})
}

func (h *FAQHandler) HandleAddFAQsBulk(c *fiber.Ctx) error {
	var req struct {
		FAQs []kb.FAQ `json:"faqs"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.FAQs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one FAQ is required",
		})
	}

	added, err := h.kb.AddFAQsBulk(c.Context(), req.FAQs)
	if err != nil {
		logger.Error("Failed to add FAQs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add FAQs",
		})
	}

	metrics.FAQsIngested.Add(float64(added))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"added": added,
	})
}
