package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// parseID parses a numeric route parameter. Zero means malformed; no real
// row has id 0, so callers can treat it like any other miss.
func parseID(c *fiber.Ctx, name string) uint {
	raw, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(raw)
}

// notFound is the uniform response for resources the principal may not see.
// Denied and nonexistent are indistinguishable on purpose.
func notFound(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": what + " not found",
	})
}

// viewOnly rejects a mutation attempted with view-level access.
func viewOnly(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "view-only access",
	})
}
