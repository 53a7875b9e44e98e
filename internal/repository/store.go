package repository

import (
	"context"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, int64, error)
	ProductsByCategory(ctx context.Context, category string, exclude []int64, limit int) ([]domain.Product, error)
	ProductsByBrand(ctx context.Context, brand string, exclude []int64, limit int) ([]domain.Product, error)
	MostReviewed(ctx context.Context, exclude []int64, limit int) ([]domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
	LowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	ReduceStock(ctx context.Context, productID int64, qty int) error
	AddStock(ctx context.Context, productID int64, qty int) error
	SetProductActive(ctx context.Context, productID int64, active bool) error
}

type CartStore interface {
	ActiveCart(ctx context.Context, userID int64) (*domain.Cart, error)
	GetOrCreateCart(ctx context.Context, userID int64) (*domain.Cart, error)
	CartLines(ctx context.Context, cartID int64) ([]domain.CartLine, error)
	CartItemByProduct(ctx context.Context, cartID, productID int64) (*domain.CartItem, error)
	CartItemOwner(ctx context.Context, itemID int64) (*domain.CartItem, int64, error)
	UpsertCartItem(ctx context.Context, item *domain.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, itemID int64, qty int) error
	DeleteCartItem(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context, cartID int64) error
}

type OrderFilter struct {
	UserID *int64
	Status *domain.OrderStatus
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	ListOrders(ctx context.Context, f OrderFilter, page domain.PageRequest) ([]domain.Order, int64, error)
	CountOrders(ctx context.Context, userID int64) (int64, error)
	UpdateOrderStatus(ctx context.Context, orderNumber string, from, to domain.OrderStatus, at time.Time) error
}

type OutboxStore interface {
	InsertOutboxEvent(ctx context.Context, ev *domain.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Store is everything the services need from persistence.
type Store interface {
	UserStore
	ProductStore
	CartStore
	OrderStore
	OutboxStore
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

var _ Store = (*Repository)(nil)
