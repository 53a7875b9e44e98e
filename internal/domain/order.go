package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ShippingInfo struct {
	Address        string `json:"shippingAddress"`
	RecipientName  string `json:"recipientName"`
	RecipientPhone string `json:"recipientPhone"`
	PaymentMethod  string `json:"paymentMethod"`
	Notes          string `json:"notes,omitempty"`
}

func (s *ShippingInfo) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return Validationf("shipping address is required")
	}
	if strings.TrimSpace(s.RecipientName) == "" {
		return Validationf("recipient name is required")
	}
	if strings.TrimSpace(s.RecipientPhone) == "" {
		return Validationf("recipient phone is required")
	}
	return nil
}

type Order struct {
	ID             int64
	OrderNumber    string
	UserID         int64
	Status         OrderStatus
	Shipping       ShippingInfo
	IdempotencyKey string
	Items          []OrderItem
	PaidAt         *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Total is always derived from the item snapshots and never stored.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}

func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItem is an immutable snapshot of a product line at checkout.
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"-"`
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

func NewOrderItem(p Product, qty int) OrderItem {
	return OrderItem{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductPrice: p.Price,
		Quantity:     qty,
		Subtotal:     p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

const orderNumberLayout = "20060102150405"

// NewOrderNumber returns "ORD" + timestamp + 8 upper-case hex characters.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD" + now.Format(orderNumberLayout) + suffix
}
