package handlers

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/auditlog"
	"github.com/toanlq204/IT-helpdesk-bot/internal/metrics"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 100
)

type FeedbackHandler struct {
	audit *auditlog.Service
}

func NewFeedbackHandler(audit *auditlog.Service) *FeedbackHandler {
	return &FeedbackHandler{
		audit: audit,
	}
}

func (h *FeedbackHandler) HandleSubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		LogID       string `json:"log_id"`
		Feedback    string `json:"feedback"`
		UserComment string `json:"user_comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.LogID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "log_id is required",
		})
	}

	ok, err := h.audit.RecordFeedback(req.LogID, req.Feedback, req.UserComment)
	if err != nil {
		if errors.Is(err, auditlog.ErrInvalidFeedbackType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid feedback type",
			})
		}
		logger.Error("Failed to record feedback", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Log entry not found",
		})
	}

	metrics.FeedbackTotal.WithLabelValues(req.Feedback).Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Feedback recorded successfully",
	})
}

func (h *FeedbackHandler) HandleRecentLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	logs, err := h.audit.ListRecent(limit)
	if err != nil {
		logger.Error("Failed to list recent logs", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}

func (h *FeedbackHandler) HandleGetLog(c *fiber.Ctx) error {
	logID := c.Params("id")

	entry, err := h.audit.GetByID(logID)
	if err != nil {
		logger.Error("Failed to get log entry", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Log entry not found",
		})
	}

	return c.JSON(entry)
}

func (h *FeedbackHandler) HandleFeedbackQueue(c *fiber.Ctx) error {
	status := c.Query("status", auditlog.StatusPendingReview)

	items, err := h.audit.ListFeedbackQueue(status)
	if err != nil {
		if errors.Is(err, auditlog.ErrInvalidQueueStatus) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid status filter",
			})
		}
		logger.Error("Failed to list feedback queue", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"feedback_items": items,
		"count":          len(items),
		"status_filter":  status,
	})
}

func (h *FeedbackHandler) HandleAdminUpdate(c *fiber.Ctx) error {
	var req struct {
		FeedbackID string `json:"feedback_id"`
		Status     string `json:"status"`
		AdminNotes string `json:"admin_notes"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.FeedbackID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "feedback_id is required",
		})
	}

	ok, err := h.audit.UpdateFeedbackQueueStatus(req.FeedbackID, req.Status, req.AdminNotes)
	if err != nil {
		if errors.Is(err, auditlog.ErrInvalidQueueStatus) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid status",
			})
		}
		logger.Error("Failed to update feedback status", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Feedback item not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Feedback status updated",
	})
}

func (h *FeedbackHandler) HandleAnalytics(c *fiber.Ctx) error {
	analytics, err := h.audit.Analytics()
	if err != nil {
		logger.Error("Failed to compute analytics", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	return c.JSON(analytics)
}

func (h *FeedbackHandler) HandleAnalyticsSummary(c *fiber.Ctx) error {
	analytics, err := h.audit.Analytics()
	if err != nil {
		logger.Error("Failed to compute analytics", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	}

	totalFeedback := 0
	for status, count := range analytics.FeedbackDistribution {
		if status != auditlog.FeedbackPending {
			totalFeedback += count
		}
	}

	correct := analytics.FeedbackDistribution[auditlog.FeedbackCorrect]
	successRate := float64(correct) / math.Max(float64(totalFeedback), 1) * 100

	highCount := analytics.ConfidenceDistribution["high"]
	highRate := float64(highCount) / math.Max(float64(analytics.TotalQueries), 1) * 100

	needsAttention := analytics.FeedbackDistribution[auditlog.FeedbackIncorrect] +
		analytics.FeedbackDistribution[auditlog.FeedbackUnclear]

	return c.JSON(fiber.Map{
		"total_queries":        analytics.TotalQueries,
		"success_rate":         round2(successRate),
		"high_confidence_rate": round2(highRate),
		"pending_reviews":      analytics.PendingReviewCount,
		"average_confidence":   round3(analytics.AverageConfidenceScore),
		"needs_attention":      needsAttention,
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
