package middleware

import (
	"log"

	"printwerk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the name of the admin session cookie.
const SessionCookie = "admin_session"

// AdminRequired is a Fiber middleware that redirects to the login page
// unless the request carries a valid admin session cookie.
func AdminRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			return c.Redirect("/admin/login", fiber.StatusSeeOther)
		}

		if err := authService.ValidateSession(token); err != nil {
			log.Printf("Admin session rejected: %v", err)
			return c.Redirect("/admin/login", fiber.StatusSeeOther)
		}

		return c.Next()
	}
}
