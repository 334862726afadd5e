package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"printwerk/internal/models"
	"printwerk/internal/repositories"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a lifecycle transition is requested
// from a status that does not allow it. The order is never mutated in that
// case; callers decide whether to surface it (the web handlers log it and
// redirect, preserving the permissive admin UI).
var ErrInvalidTransition = errors.New("invalid transition")

// EventPublisher publishes order lifecycle events. Implemented by the
// rabbitmq client; nil disables event publishing.
type EventPublisher interface {
	Publish(eventType string, body []byte) error
}

// OrderService owns the order lifecycle state machine.
type OrderService struct {
	orderRepo repositories.OrderRepository
	publisher EventPublisher
	currency  string
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, publisher EventPublisher, defaultCurrency string) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		publisher: publisher,
		currency:  defaultCurrency,
	}
}

// CreateOrderInput carries a validated submission. Token is generated by the
// caller (via NewToken) before the upload is stored, so the image path can
// embed it.
type CreateOrderInput struct {
	Token         string
	CustomerName  string
	CustomerEmail string
	Description   string
	ModelLink     string
	ImagePath     string
}

// CreateOrder persists a new order in status NEW and publishes an
// order.created event. Text fields are trimmed of surrounding whitespace.
func (s *OrderService) CreateOrder(in CreateOrderInput) (*models.Order, error) {
	order := &models.Order{
		Token:         in.Token,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Description:   strings.TrimSpace(in.Description),
		ModelLink:     strings.TrimSpace(in.ModelLink),
		ImagePath:     in.ImagePath,
		Status:        models.StatusNew,
		Currency:      s.currency,
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.publishEvent(models.EventOrderCreated, order, "")
	return order, nil
}

// GetByID retrieves a single order by its numeric ID.
func (s *OrderService) GetByID(id uint) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// GetByToken retrieves a single order by its public token.
func (s *OrderService) GetByToken(token string) (*models.Order, error) {
	return s.orderRepo.GetByToken(token)
}

// ListOrders returns all orders, newest first, optionally narrowed by a
// case-insensitive substring query over name, email and model link, and by
// an exact status match. Filtering is in memory; fine for a small shop.
func (s *OrderService) ListOrders(query string, statusFilter string) ([]models.Order, error) {
	orders, err := s.orderRepo.GetAll()
	if err != nil {
		return nil, err
	}

	if statusFilter != "" {
		filtered := make([]models.Order, 0, len(orders))
		for _, o := range orders {
			if string(o.Status) == statusFilter {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		filtered := make([]models.Order, 0, len(orders))
		for _, o := range orders {
			if strings.Contains(strings.ToLower(o.CustomerName), q) ||
				strings.Contains(strings.ToLower(o.CustomerEmail), q) ||
				strings.Contains(strings.ToLower(o.ModelLink), q) {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return orders, nil
}

// Reject moves an order into the terminal REJECTED status and stores the
// admin note. Allowed from any non-terminal status.
func (s *OrderService) Reject(id uint, adminNote string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		log.Printf("Ignoring reject for order %d in terminal status %s", id, order.Status)
		return order, fmt.Errorf("%w: reject from %s", ErrInvalidTransition, order.Status)
	}

	order.Status = models.StatusRejected
	order.AdminNote = strings.TrimSpace(adminNote)
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to reject order %d: %w", id, err)
	}
	return order, nil
}

// AcceptForPricing marks an order as being quoted. Only meaningful from NEW
// or PRICE_REJECTED (the re-quote cycle); anything else leaves the order
// untouched.
func (s *OrderService) AcceptForPricing(id uint, adminNote string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusNew && order.Status != models.StatusPriceRejected {
		log.Printf("Ignoring accept for order %d in status %s", id, order.Status)
		return order, fmt.Errorf("%w: accept from %s", ErrInvalidTransition, order.Status)
	}

	order.Status = models.StatusAwaitingPrice
	if note := strings.TrimSpace(adminNote); note != "" {
		order.AdminNote = note
	}
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to accept order %d: %w", id, err)
	}
	return order, nil
}

// SetPrice parses the decimal price string, stores it as cents and moves the
// order to PRICE_SENT. A bad price string leaves the order unchanged and
// returns ErrInvalidPrice.
func (s *OrderService) SetPrice(id uint, priceStr string) (*models.Order, error) {
	cents, err := ParsePrice(priceStr)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	order.PriceCents = &cents
	order.Currency = s.currency
	order.Status = models.StatusPriceSent
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to set price on order %d: %w", id, err)
	}

	s.publishEvent(models.EventOrderPriceSent, order, FormatPrice(order.PriceCents, order.Currency))
	return order, nil
}

// Decide records the customer's answer to a quote. Only valid while the
// order is in PRICE_SENT; any other status is an idempotent no-op.
func (s *OrderService) Decide(token string, decision string, note string) (*models.Order, error) {
	order, err := s.orderRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPriceSent {
		log.Printf("Ignoring decision for order %d in status %s", order.ID, order.Status)
		return order, fmt.Errorf("%w: decision from %s", ErrInvalidTransition, order.Status)
	}

	if strings.ToLower(strings.TrimSpace(decision)) == "accept" {
		order.Status = models.StatusPriceAccepted
	} else {
		order.Status = models.StatusPriceRejected
	}
	order.CustomerDecisionNote = strings.TrimSpace(note)
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to store decision for order %d: %w", order.ID, err)
	}
	return order, nil
}

// Complete finishes an order whose quote was accepted. Any other status is
// a no-op.
func (s *OrderService) Complete(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPriceAccepted {
		log.Printf("Ignoring complete for order %d in status %s", id, order.Status)
		return order, fmt.Errorf("%w: complete from %s", ErrInvalidTransition, order.Status)
	}

	order.Status = models.StatusCompleted
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("failed to complete order %d: %w", id, err)
	}

	s.publishEvent(models.EventOrderCompleted, order, "")
	return order, nil
}

// FormatPriceFor renders an order's price for display, or "" when unquoted.
func (s *OrderService) FormatPriceFor(order *models.Order) string {
	return FormatPrice(order.PriceCents, order.Currency)
}

// publishEvent emits a lifecycle event. Publishing is fire-and-forget:
// failures are logged and never fail the triggering request.
func (s *OrderService) publishEvent(eventType string, order *models.Order, price string) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(models.OrderEvent{
		EventID:       uuid.New().String(),
		Event:         eventType,
		OrderID:       order.ID,
		Token:         order.Token,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Price:         price,
	})
	if err != nil {
		log.Printf("Failed to marshal %s event for order %d: %v", eventType, order.ID, err)
		return
	}
	if err := s.publisher.Publish(eventType, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %d: %v", eventType, order.ID, err)
	}
}
