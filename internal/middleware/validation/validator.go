package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var scriptPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxMessageLength int
	MaxFAQLength     int
	Logger           *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 5000
	}
	if cfg.MaxFAQLength == 0 {
		cfg.MaxFAQLength = 8192
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != "POST" && c.Method() != "PUT" {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.HasSuffix(path, "/chat") {
			return validateChat(c, cfg)
		}
		if strings.HasSuffix(path, "/faqs") {
			return validateFAQ(c, cfg)
		}

		return c.Next()
	}
}

func validateChat(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	message, ok := req["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required and must be a string",
		})
	}

	if len(message) > cfg.MaxMessageLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message exceeds maximum length",
		})
	}

	if scriptPattern.MatchString(message) {
		cfg.Logger.Warn("Potential script injection attempt",
			zap.String("ip", c.IP()),
			zap.String("path", c.Path()),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid message content",
		})
	}

	return c.Next()
}

func validateFAQ(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	text, ok := req["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "FAQ text is required and must be a string",
		})
	}

	if len(text) > cfg.MaxFAQLength {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "FAQ text exceeds maximum length",
		})
	}

	return c.Next()
}
