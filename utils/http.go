// utils/http.go - JSON envelope helpers for fiber handlers
package utils

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// JSON sends data with the given status.
func JSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(data)
}

// JSONError sends a {"success": false, "error": ...} response.
func JSONError(c *fiber.Ctx, status int, message string) error {
	return JSON(c, status, fiber.Map{
		"success": false,
		"error":   message,
	})
}

// JSONSuccess sends a {"success": true, ...} response. Keys of data are
// merged into the envelope.
func JSONSuccess(c *fiber.Ctx, status int, data fiber.Map) error {
	response := fiber.Map{"success": true}
	for k, v := range data {
		response[k] = v
	}
	return JSON(c, status, response)
}

// ParamID parses a positive numeric route parameter.
func ParamID(c *fiber.Ctx, key string) (uint, error) {
	return ParseID(c.Params(key))
}

// ParseID parses a positive numeric id.
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}
