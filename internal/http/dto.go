package http

import (
	"encoding/json"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/shopspring/decimal"
)

// money renders a decimal as a JSON number with two fraction digits.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type UserDTO struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	FullName  string    `json:"fullName,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func userFromDomain(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Phone:     u.Phone,
		Address:   u.Address,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

type ProductDTO struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
	InStock     bool        `json:"inStock"`
	Category    string      `json:"category"`
	Brand       string      `json:"brand"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	Rating      float64     `json:"rating"`
	ReviewCount int         `json:"reviewCount"`
	Active      bool        `json:"active"`
}

type ProductDetailDTO struct {
	ProductDTO
	RelatedProducts []ProductDTO `json:"relatedProducts"`
}

func productFromDomain(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Stock:       p.Stock,
		InStock:     p.Active && p.Stock > 0,
		Category:    p.Category,
		Brand:       p.Brand,
		ImageURL:    p.ImageURL,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		Active:      p.Active,
	}
}

func productsFromDomain(ps []domain.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(ps))
	for i := range ps {
		out = append(out, productFromDomain(&ps[i]))
	}
	return out
}

type CartItemDTO struct {
	CartItemID  int64       `json:"cartItemId"`
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
	Subtotal    json.Number `json:"subtotal"`
	Stock       int         `json:"stock"`
	InStock     bool        `json:"inStock"`
}

type CartDTO struct {
	CartID        int64         `json:"cartId,omitempty"`
	Items         []CartItemDTO `json:"items"`
	TotalQuantity int           `json:"totalQuantity"`
	TotalAmount   json.Number   `json:"totalAmount"`
	Empty         bool          `json:"empty"`
}

func cartFromDomain(v *domain.CartView) CartDTO {
	items := make([]CartItemDTO, 0, len(v.Lines))
	for _, l := range v.Lines {
		items = append(items, CartItemDTO{
			CartItemID:  l.Item.ID,
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			ImageURL:    l.Product.ImageURL,
			Price:       money(l.Product.Price),
			Quantity:    l.Item.Quantity,
			Subtotal:    money(l.Subtotal()),
			Stock:       l.Product.Stock,
			InStock:     l.InStock(),
		})
	}
	return CartDTO{
		CartID:        v.CartID,
		Items:         items,
		TotalQuantity: v.TotalQuantity(),
		TotalAmount:   money(v.Total()),
		Empty:         v.IsEmpty(),
	}
}

type StockIssueDTO struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func stockIssueFromDomain(e *domain.StockError) StockIssueDTO {
	return StockIssueDTO{
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		Requested:   e.Requested,
		Available:   e.Available,
	}
}

type OrderItemDTO struct {
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
	Subtotal    json.Number `json:"subtotal"`
}

type OrderDTO struct {
	OrderNumber   string              `json:"orderNumber"`
	Status        domain.OrderStatus  `json:"status"`
	StatusLabel   string              `json:"statusLabel"`
	TotalAmount   json.Number         `json:"totalAmount"`
	TotalQuantity int                 `json:"totalQuantity"`
	Shipping      domain.ShippingInfo `json:"shipping"`
	Items         []OrderItemDTO      `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	ShippedAt     *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt   *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt   *time.Time          `json:"cancelledAt,omitempty"`
}

func orderFromDomain(o *domain.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       money(it.ProductPrice),
			Quantity:    it.Quantity,
			Subtotal:    money(it.Subtotal),
		})
	}
	return OrderDTO{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		StatusLabel:   o.Status.Label(),
		TotalAmount:   money(o.Total()),
		TotalQuantity: o.TotalQuantity(),
		Shipping:      o.Shipping,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		PaidAt:        o.PaidAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		CancelledAt:   o.CancelledAt,
	}
}

func ordersFromDomain(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, orderFromDomain(&orders[i]))
	}
	return out
}

type LoginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type UpdateItemRequestDTO struct {
	CartItemID int64 `json:"cartItemId"`
	Quantity   int   `json:"quantity"`
}

type QuickOrderRequestDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	domain.ShippingInfo
}

type AdjustStockRequestDTO struct {
	Delta int `json:"delta"`
}
