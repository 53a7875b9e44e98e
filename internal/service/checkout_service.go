package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// order number collisions and postgres deadlocks retry the whole transaction
const maxCheckoutAttempts = 3

const MaxIdempotencyKeyLength = 64

type CheckoutService struct {
	store       repository.Store
	now         func() time.Time
	orderNumber func(time.Time) string
}

func NewCheckoutService(store repository.Store) *CheckoutService {
	return &CheckoutService{store: store, now: time.Now, orderNumber: domain.NewOrderNumber}
}

// Checkout turns the caller's cart into a PENDING order in one transaction:
// validate every line, decrement stock conditionally, snapshot the items,
// clear the cart and record an order.created event. Any failure leaves the
// cart, the stock and the orders table untouched.
//
// A non-empty idempotencyKey makes retries return the order created by the
// first successful call.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64, ship domain.ShippingInfo, idempotencyKey string) (*domain.Order, error) {
	return s.run(ctx, "Checkout", userID, idempotencyKey, func(ctx context.Context, tx repository.Store) (*domain.Order, error) {
		return s.checkoutTx(ctx, tx, userID, ship, idempotencyKey)
	})
}

// QuickOrder adds one product to the cart and checks the whole cart out.
// Both steps share the transaction.
func (s *CheckoutService) QuickOrder(ctx context.Context, userID, productID int64, qty int, ship domain.ShippingInfo, idempotencyKey string) (*domain.Order, error) {
	return s.run(ctx, "QuickOrder", userID, idempotencyKey, func(ctx context.Context, tx repository.Store) (*domain.Order, error) {
		if idempotencyKey != "" {
			if prior, err := priorOrder(ctx, tx, userID, idempotencyKey); prior != nil || err != nil {
				return prior, err
			}
		}
		if err := addToCart(ctx, tx, userID, productID, qty); err != nil {
			return nil, err
		}
		return s.checkoutTx(ctx, tx, userID, ship, idempotencyKey)
	})
}

func (s *CheckoutService) run(ctx context.Context, op string, userID int64, key string, fn func(context.Context, repository.Store) (*domain.Order, error)) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "CheckoutService."+op)
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Bool("checkout.idempotent", key != ""))
	defer func() { endSpan(span, err) }()

	if len(key) > MaxIdempotencyKeyLength {
		return nil, domain.Validationf("idempotency key longer than %d characters", MaxIdempotencyKeyLength)
	}

	for attempt := 1; attempt <= maxCheckoutAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(tx repository.Store) error {
			var txErr error
			order, txErr = fn(ctx, tx)
			return txErr
		})
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			// a concurrent request with the same key won; hand back its order
			order, err = s.store.GetOrderByIdempotencyKey(ctx, userID, key)
			break
		}
		if !errors.Is(err, repository.ErrDuplicateOrder) && !repository.IsTransientConflict(err) {
			break
		}
		slog.WarnContext(ctx, "checkout transaction conflict, retrying", "attempt", attempt, "error", err)
	}
	if err != nil {
		slog.InfoContext(ctx, "checkout failed", "user_id", userID, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	slog.InfoContext(ctx, "order placed",
		"order_number", order.OrderNumber,
		"user_id", userID,
		"items", len(order.Items),
		"total", order.Total().StringFixed(2))
	return order, nil
}

func priorOrder(ctx context.Context, tx repository.OrderStore, userID int64, key string) (*domain.Order, error) {
	prior, err := tx.GetOrderByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return prior, err
}

func (s *CheckoutService) checkoutTx(ctx context.Context, tx repository.Store, userID int64, ship domain.ShippingInfo, key string) (*domain.Order, error) {
	if key != "" {
		if prior, err := priorOrder(ctx, tx, userID, key); prior != nil || err != nil {
			return prior, err
		}
	}
	if err := ship.Validate(); err != nil {
		return nil, err
	}

	cart, err := loadCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}
	if short := cart.Shortages(); len(short) > 0 {
		return nil, short[0]
	}

	now := s.now().UTC()
	order := &domain.Order{
		OrderNumber:    s.orderNumber(now),
		UserID:         userID,
		Status:         domain.OrderStatusPending,
		Shipping:       ship,
		IdempotencyKey: key,
		Items:          make([]domain.OrderItem, 0, len(cart.Lines)),
	}

	// rows are locked in product id order so two carts holding the same
	// products in a different order cannot deadlock
	locking := slices.Clone(cart.Lines)
	slices.SortFunc(locking, func(a, b domain.CartLine) int { return cmp.Compare(a.Product.ID, b.Product.ID) })
	for _, line := range locking {
		// conditional decrement; a concurrent checkout may have taken the units since validation
		if err := tx.ReduceStock(ctx, line.Product.ID, line.Item.Quantity); err != nil {
			return nil, err
		}
	}
	for _, line := range cart.Lines {
		order.Items = append(order.Items, domain.NewOrderItem(line.Product, line.Item.Quantity))
	}

	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.ClearCart(ctx, cart.CartID); err != nil {
		return nil, err
	}

	ev, err := domain.NewOrderEvent(domain.EventOrderCreated, order, now)
	if err != nil {
		return nil, fmt.Errorf("build order event: %w", err)
	}
	if err := tx.InsertOutboxEvent(ctx, ev); err != nil {
		return nil, err
	}
	return order, nil
}
