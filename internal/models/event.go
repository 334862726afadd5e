package models

// Lifecycle event types published to the message queue.
const (
	EventOrderCreated   = "order.created"
	EventOrderPriceSent = "order.price_sent"
	EventOrderCompleted = "order.completed"
)

// OrderEvent is the message body published for every lifecycle event
// that triggers a customer notification.
type OrderEvent struct {
	EventID       string `json:"event_id"`
	Event         string `json:"event"`
	OrderID       uint   `json:"order_id"`
	Token         string `json:"token"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	// Price is the formatted price string, only set for price_sent events.
	Price string `json:"price,omitempty"`
}
