package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// parseUintParam reads a numeric route parameter.
func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// parseUintQuery reads a numeric query parameter with a default.
func parseUintQuery(c *fiber.Ctx, name string, def uint) uint {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return def
	}
	return uint(id)
}
