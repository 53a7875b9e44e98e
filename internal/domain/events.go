package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderShipped   = "order.shipped"
	EventOrderDelivered = "order.delivered"
	EventOrderCancelled = "order.cancelled"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and published later.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OrderEventPayload struct {
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func NewOrderEvent(eventType string, o *Order, at time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(OrderEventPayload{
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      o.Status,
		Items:       o.Items,
		TotalAmount: o.Total(),
		OccurredAt:  at,
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		AggregateID: o.OrderNumber,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
