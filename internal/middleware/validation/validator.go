package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxEvidenceItems    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects malformed correlation payloads before they reach the
// handlers: wrong content type, missing evidence array, oversized batches.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxEvidenceItems == 0 {
		cfg.MaxEvidenceItems = 5000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if c.Method() == "POST" && (strings.Contains(path, "/api/v1/correlate") || strings.Contains(path, "/api/v1/evidence")) {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			items, ok := req["evidence_items"].([]interface{})
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "evidence_items is required and must be an array",
				})
			}

			if len(items) > cfg.MaxEvidenceItems {
				if cfg.Logger != nil {
					cfg.Logger.Warn("Oversized evidence batch rejected",
						zap.String("ip", c.IP()),
						zap.Int("items", len(items)),
					)
				}
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Evidence batch exceeds maximum size",
				})
			}

			if threshold, ok := req["confidence_threshold"].(float64); ok {
				if threshold < 0 || threshold > 1 {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "confidence_threshold must be between 0 and 1",
					})
				}
			}
		}

		return c.Next()
	}
}
