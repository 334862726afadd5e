package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps framework-level errors onto rendered pages. Fiber
// rejects bodies over BodyLimit before any handler runs, so oversized
// uploads that exceed even the headroom above the configured image limit
// are answered here with the same re-rendered form the handler produces.
func ErrorHandler(appName string, maxUploadMB int) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}

		if code == fiber.StatusRequestEntityTooLarge {
			return c.Status(code).Render("index", fiber.Map{
				"AppName": appName,
				"Error":   fmt.Sprintf("Bild ist zu groß. Maximal %d MB.", maxUploadMB),
			})
		}

		return fiber.DefaultErrorHandler(c, err)
	}
}
