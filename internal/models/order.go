package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusNew           OrderStatus = "NEW"
	StatusRejected      OrderStatus = "REJECTED"
	StatusAwaitingPrice OrderStatus = "AWAITING_PRICE"
	StatusPriceSent     OrderStatus = "PRICE_SENT"
	StatusPriceAccepted OrderStatus = "PRICE_ACCEPTED"
	StatusPriceRejected OrderStatus = "PRICE_REJECTED"
	StatusCompleted     OrderStatus = "COMPLETED"
)

// AllStatuses lists every lifecycle state, used for the admin filter dropdown.
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		StatusNew,
		StatusRejected,
		StatusAwaitingPrice,
		StatusPriceSent,
		StatusPriceAccepted,
		StatusPriceRejected,
		StatusCompleted,
	}
}

// IsTerminal reports whether no further transition is allowed from s.
// PRICE_REJECTED is not terminal: the admin can re-quote.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Order represents one customer print request.
// Token is the public lookup key and never changes after creation.
type Order struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Token string `json:"token" gorm:"uniqueIndex;type:varchar(64);not null"`

	CustomerName  string `json:"customer_name" gorm:"type:varchar(200);not null"`
	CustomerEmail string `json:"customer_email" gorm:"type:varchar(320);not null"`
	Description   string `json:"description" gorm:"type:varchar(4000);not null"`
	ModelLink     string `json:"model_link" gorm:"type:varchar(2000)"`

	// Relative path like "uploads/<token>/<filename>", set at most once.
	ImagePath string `json:"image_path" gorm:"type:varchar(2000)"`

	Status OrderStatus `json:"status" gorm:"type:varchar(32);not null"`

	AdminNote            string `json:"admin_note" gorm:"type:varchar(2000)"`
	CustomerDecisionNote string `json:"customer_decision_note" gorm:"type:varchar(2000)"`

	// PriceCents is nil until the admin sends a quote.
	PriceCents *int64 `json:"price_cents"`
	Currency   string `json:"currency" gorm:"type:varchar(8);not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
