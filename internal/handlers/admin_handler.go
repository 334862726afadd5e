package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"printwerk/internal/middleware"
	"printwerk/internal/models"
	"printwerk/internal/repositories"
	"printwerk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the admin login and order management routes.
type AdminHandler struct {
	orders  *services.OrderService
	auth    *services.AuthService
	appName string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orders *services.OrderService, auth *services.AuthService, appName string) *AdminHandler {
	return &AdminHandler{
		orders:  orders,
		auth:    auth,
		appName: appName,
	}
}

// RegisterRoutes registers the admin routes with the Fiber app. The login
// and logout routes stay outside the session gate.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/admin/login", h.HandleLoginForm)
	router.Post("/admin/login", h.HandleLogin)
	router.Post("/admin/logout", h.HandleLogout)

	admin := router.Group("/admin", middleware.AdminRequired(h.auth))
	admin.Get("/", h.HandleDashboard)
	admin.Get("/order/:id", h.HandleOrderDetail)
	admin.Post("/order/:id/reject", h.HandleReject)
	admin.Post("/order/:id/accept", h.HandleAccept)
	admin.Post("/order/:id/set_price", h.HandleSetPrice)
	admin.Post("/order/:id/complete", h.HandleComplete)
}

// HandleLoginForm renders the login page.
func (h *AdminHandler) HandleLoginForm(c *fiber.Ctx) error {
	return c.Render("admin_login", fiber.Map{
		"AppName":   h.appName,
		"AdminUser": h.auth.AdminUser(),
	})
}

// HandleLogin checks the submitted credentials and sets the session cookie
// on success. A failed login re-renders the form with status 401.
func (h *AdminHandler) HandleLogin(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	if h.auth.VerifyCredentials(username, password) {
		session, err := h.auth.IssueSession()
		if err != nil {
			log.Printf("Error issuing admin session: %v", err)
			return fiber.ErrInternalServerError
		}
		c.Cookie(&fiber.Cookie{
			Name:     middleware.SessionCookie,
			Value:    session,
			Path:     "/",
			HTTPOnly: true,
			SameSite: "Lax",
		})
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}

	return c.Status(fiber.StatusUnauthorized).Render("admin_login", fiber.Map{
		"AppName":   h.appName,
		"AdminUser": h.auth.AdminUser(),
		"Error":     "Login fehlgeschlagen.",
	})
}

// HandleLogout clears the session cookie.
func (h *AdminHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.Redirect("/", fiber.StatusSeeOther)
}

// HandleDashboard renders the order list with the optional substring query
// and status filter.
func (h *AdminHandler) HandleDashboard(c *fiber.Ctx) error {
	q := c.Query("q")
	statusFilter := c.Query("status_filter")

	orders, err := h.orders.ListOrders(q, statusFilter)
	if err != nil {
		log.Printf("Error listing orders: %v", err)
		return fiber.ErrInternalServerError
	}

	return c.Render("admin_dashboard", fiber.Map{
		"AppName":      h.appName,
		"Orders":       orders,
		"Q":            q,
		"StatusFilter": statusFilter,
		"Statuses":     models.AllStatuses(),
	})
}

// HandleOrderDetail renders one order. Unknown ids redirect to the list.
func (h *AdminHandler) HandleOrderDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}

	order, err := h.orders.GetByID(uint(id))
	if err != nil {
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}

	return c.Render("admin_request", fiber.Map{
		"AppName":  h.appName,
		"Order":    order,
		"PriceStr": h.orders.FormatPriceFor(order),
		"Statuses": models.AllStatuses(),
	})
}

// HandleReject rejects an order with an optional note.
func (h *AdminHandler) HandleReject(c *fiber.Ctx) error {
	return h.runTransition(c, func(id uint) error {
		_, err := h.orders.Reject(id, c.FormValue("admin_note"))
		return err
	})
}

// HandleAccept accepts an order for pricing.
func (h *AdminHandler) HandleAccept(c *fiber.Ctx) error {
	return h.runTransition(c, func(id uint) error {
		_, err := h.orders.AcceptForPricing(id, c.FormValue("admin_note"))
		return err
	})
}

// HandleSetPrice parses the price_eur form field and sends the quote.
func (h *AdminHandler) HandleSetPrice(c *fiber.Ctx) error {
	return h.runTransition(c, func(id uint) error {
		_, err := h.orders.SetPrice(id, c.FormValue("price_eur"))
		return err
	})
}

// HandleComplete finishes an accepted order.
func (h *AdminHandler) HandleComplete(c *fiber.Ctx) error {
	return h.runTransition(c, func(id uint) error {
		_, err := h.orders.Complete(id)
		return err
	})
}

// runTransition applies one lifecycle transition and redirects back to the
// order view. Guarded no-ops and bad price input redirect as well: stale
// admin page state must not produce hard errors. Unknown orders go back to
// the list.
func (h *AdminHandler) runTransition(c *fiber.Ctx, transition func(id uint) error) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}

	if err := transition(uint(id)); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrInvalidPrice):
			log.Printf("Transition skipped for order %d: %v", id, err)
		case errors.Is(err, repositories.ErrNotFound):
			return c.Redirect("/admin", fiber.StatusSeeOther)
		default:
			log.Printf("Transition failed for order %d: %v", id, err)
			return fiber.ErrInternalServerError
		}
	}

	return c.Redirect(fmt.Sprintf("/admin/order/%d", id), fiber.StatusSeeOther)
}
