package repositories

import (
	"errors"

	"printwerk/internal/models"
)

// ErrNotFound is returned when no order matches the lookup. Both
// implementations wrap it so callers can dispatch with errors.Is.
var ErrNotFound = errors.New("order not found")

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id uint) (*models.Order, error)
	GetByToken(token string) (*models.Order, error)
	Create(order *models.Order) error
	Update(order *models.Order) error
}
