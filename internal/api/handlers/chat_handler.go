package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/memory"
	"github.com/toanlq204/IT-helpdesk-bot/internal/pipeline"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

type ChatHandler struct {
	engine *pipeline.Engine
	memory memory.Store
}

func NewChatHandler(engine *pipeline.Engine, mem memory.Store) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		memory: mem,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	response, err := h.engine.Answer(c.Context(), pipeline.Request{
		ConversationID: conversationID,
		Question:       req.Message,
	})
	if err != nil {
		logger.Error("Failed to process chat message", zap.Error(err))
		if errors.Is(err, storage.ErrUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(response)
}

func (h *ChatHandler) HandleClearConversation(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	cleared, err := h.memory.Clear(c.Context(), conversationID)
	if err != nil {
		logger.Error("Failed to clear conversation", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"cleared":         cleared,
		"conversation_id": conversationID,
	})
}

func (h *ChatHandler) HandleConversationStats(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Conversation ID is required",
		})
	}

	stats, err := h.memory.Stats(c.Context(), conversationID)
	if err != nil {
		logger.Error("Failed to read conversation stats", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	return c.JSON(stats)
}
