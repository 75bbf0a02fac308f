// Package handlers exposes the services over the /api HTTP routes.
package handlers

import (
	"minimarket/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// Middlewares are the per-route guards shared by every handler.
type Middlewares struct {
	// Gate rejects requests without a valid token.
	Gate fiber.Handler
	// LoginLimit throttles credential checks. Optional.
	LoginLimit fiber.Handler
	// PublicCache caches anonymous reads. Optional.
	PublicCache fiber.Handler
}

func (m Middlewares) public(h fiber.Handler) []fiber.Handler {
	if m.PublicCache == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{m.PublicCache, h}
}

func (m Middlewares) login(h fiber.Handler) []fiber.Handler {
	if m.LoginLimit == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{m.LoginLimit, h}
}

func (m Middlewares) gated(h fiber.Handler) []fiber.Handler {
	return []fiber.Handler{m.Gate, h}
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("Invalid request body", nil)
	}
	return nil
}
