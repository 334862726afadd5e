package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"printwerk/internal/models"
	"printwerk/internal/services"
	"printwerk/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PublicHandler serves the customer-facing routes: intake form, submission,
// tokenized status view, quote decision and upload retrieval.
type PublicHandler struct {
	orders   *services.OrderService
	uploads  *storage.UploadStore
	validate *validator.Validate
	appName  string
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(orders *services.OrderService, uploads *storage.UploadStore, appName string) *PublicHandler {
	return &PublicHandler{
		orders:   orders,
		uploads:  uploads,
		validate: validator.New(),
		appName:  appName,
	}
}

// RegisterRoutes registers the public routes with the Fiber app.
func (h *PublicHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandleIndex)
	router.Post("/submit", h.HandleSubmit)
	router.Get("/r/:token", h.HandlePublicView)
	router.Post("/r/:token/decision", h.HandleDecision)
	router.Get("/uploads/:token/:filename", h.HandleUpload)
}

// SubmitRequest represents the intake form fields.
type SubmitRequest struct {
	CustomerName  string `form:"customer_name" validate:"required"`
	CustomerEmail string `form:"customer_email" validate:"required,email"`
	Description   string `form:"description" validate:"required"`
	ModelLink     string `form:"model_link" validate:"omitempty,url"`
}

// HandleIndex renders the intake form.
func (h *PublicHandler) HandleIndex(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"AppName": h.appName,
	})
}

// renderIndexError re-renders the intake form with an inline error and the
// submitted text fields, so the customer does not lose their input.
func (h *PublicHandler) renderIndexError(c *fiber.Ctx, status int, message string, req SubmitRequest) error {
	return c.Status(status).Render("index", fiber.Map{
		"AppName":       h.appName,
		"Error":         message,
		"CustomerName":  req.CustomerName,
		"CustomerEmail": req.CustomerEmail,
		"Description":   req.Description,
		"ModelLink":     req.ModelLink,
	})
}

// HandleSubmit creates a new order from the multipart intake form. An
// invalid submission or upload re-renders the form; no order is created.
func (h *PublicHandler) HandleSubmit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing submit form: %v", err)
		return h.renderIndexError(c, fiber.StatusBadRequest, "Ungültige Eingabe.", req)
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.Description = strings.TrimSpace(req.Description)
	req.ModelLink = strings.TrimSpace(req.ModelLink)

	if err := h.validate.Struct(req); err != nil {
		return h.renderIndexError(c, fiber.StatusBadRequest, "Bitte alle Pflichtfelder korrekt ausfüllen.", req)
	}

	// The token is generated before the upload is stored so the image path
	// can embed it.
	token, err := services.NewToken()
	if err != nil {
		log.Printf("Error generating order token: %v", err)
		return fiber.ErrInternalServerError
	}

	imagePath := ""
	if fh, err := c.FormFile("image"); err == nil && fh != nil && fh.Filename != "" {
		if err := h.uploads.ValidateType(fh.Header.Get("Content-Type")); err != nil {
			return h.renderIndexError(c, fiber.StatusBadRequest,
				"Bitte nur Bilder hochladen (png/jpg/webp/gif).", req)
		}
		if fh.Size > h.uploads.MaxBytes() {
			return h.renderIndexError(c, fiber.StatusBadRequest,
				fmt.Sprintf("Bild ist zu groß. Maximal %d MB.", h.uploads.MaxBytes()>>20), req)
		}

		file, err := fh.Open()
		if err != nil {
			log.Printf("Error opening upload: %v", err)
			return fiber.ErrInternalServerError
		}
		defer file.Close()

		imagePath, err = h.uploads.Save(token, fh.Filename, fh.Size, file)
		if err != nil {
			log.Printf("Error storing upload: %v", err)
			return fiber.ErrInternalServerError
		}
	}

	order, err := h.orders.CreateOrder(services.CreateOrderInput{
		Token:         token,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Description:   req.Description,
		ModelLink:     req.ModelLink,
		ImagePath:     imagePath,
	})
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return fiber.ErrInternalServerError
	}

	return c.Render("submit_success", fiber.Map{
		"AppName": h.appName,
		"Token":   order.Token,
	})
}

// HandlePublicView renders the tokenized status page. An unknown token gets
// a not-found view, never a raw error.
func (h *PublicHandler) HandlePublicView(c *fiber.Ctx) error {
	order, err := h.orders.GetByToken(c.Params("token"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("request_public", fiber.Map{
			"AppName":  h.appName,
			"NotFound": true,
		})
	}

	return c.Render("request_public", fiber.Map{
		"AppName":   h.appName,
		"Order":     order,
		"PriceStr":  h.orders.FormatPriceFor(order),
		"CanDecide": order.Status == models.StatusPriceSent,
	})
}

// HandleDecision records the customer's answer to a quote and redirects back
// to the status page. Unknown tokens and stale page state (order no longer
// in PRICE_SENT) redirect without error.
func (h *PublicHandler) HandleDecision(c *fiber.Ctx) error {
	token := c.Params("token")

	if _, err := h.orders.Decide(token, c.FormValue("decision"), c.FormValue("note")); err != nil {
		if !errors.Is(err, services.ErrInvalidTransition) {
			log.Printf("Decision for token failed: %v", err)
		}
	}

	return c.Redirect("/r/"+token, fiber.StatusSeeOther)
}

// HandleUpload serves a stored image only when the requested (token,
// filename) pair recomputes to exactly the path recorded on the order.
// Everything else redirects home without leaking whether the file exists.
func (h *PublicHandler) HandleUpload(c *fiber.Ctx) error {
	token := c.Params("token")

	order, err := h.orders.GetByToken(token)
	if err != nil || order.ImagePath == "" {
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	path, err := h.uploads.Resolve(token, c.Params("filename"), order.ImagePath)
	if err != nil {
		log.Printf("Rejected upload request for order %d: %v", order.ID, err)
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	return c.SendFile(path)
}
