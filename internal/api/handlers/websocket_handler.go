package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/pipeline"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

type WebSocketHandler struct {
	engine *pipeline.Engine
}

func NewWebSocketHandler(engine *pipeline.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type           string `json:"type"`
			Content        string `json:"content"`
			ConversationID string `json:"conversation_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Content == "" {
			continue
		}

		if msg.ConversationID == "" {
			msg.ConversationID = uuid.New().String()
		}

		logger.Info("Processing WebSocket query", zap.String("conversationId", msg.ConversationID))

		err = h.streamResponse(c, msg.Content, msg.ConversationID)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, question, conversationID string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Processing query...")

	response, err := h.engine.Answer(ctx, pipeline.Request{
		ConversationID: conversationID,
		Question:       question,
	})
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *pipeline.Response) error {
	msg := map[string]interface{}{
		"type":               "complete",
		"log_id":             response.LogID,
		"conversation_id":    response.ConversationID,
		"confidence_level":   response.ConfidenceTier,
		"needs_human_review": response.NeedsHumanReview,
		"sources":            response.Sources,
		"latency_ms":         response.LatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
