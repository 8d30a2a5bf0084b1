package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// MethodOverride lets HTML forms reach PUT, PATCH and DELETE routes by
// posting a "_method" field. It must be registered before any route.
func MethodOverride() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost {
			switch m := strings.ToUpper(c.FormValue("_method")); m {
			case fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
				c.Method(m)
			}
		}
		return c.Next()
	}
}
