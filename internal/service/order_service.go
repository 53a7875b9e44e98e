package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

type OrderService struct {
	store repository.Store
	now   func() time.Time
}

func NewOrderService(store repository.Store) *OrderService {
	return &OrderService{store: store, now: time.Now}
}

var transitionEvents = map[domain.OrderStatus]string{
	domain.OrderStatusPaid:      domain.EventOrderPaid,
	domain.OrderStatusShipped:   domain.EventOrderShipped,
	domain.OrderStatusDelivered: domain.EventOrderDelivered,
	domain.OrderStatusCancelled: domain.EventOrderCancelled,
}

// Get returns one of the caller's orders.
func (s *OrderService) Get(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error) {
	o, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// GetAny skips the ownership check; back-office only.
func (s *OrderService) GetAny(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.store.GetOrderByNumber(ctx, orderNumber)
}

func (s *OrderService) ListForUser(ctx context.Context, userID int64, status *domain.OrderStatus, page domain.PageRequest) (domain.Page[domain.Order], error) {
	return s.list(ctx, repository.OrderFilter{UserID: &userID, Status: status}, page)
}

func (s *OrderService) ListAll(ctx context.Context, status *domain.OrderStatus, page domain.PageRequest) (domain.Page[domain.Order], error) {
	return s.list(ctx, repository.OrderFilter{Status: status}, page)
}

func (s *OrderService) list(ctx context.Context, f repository.OrderFilter, page domain.PageRequest) (domain.Page[domain.Order], error) {
	page = domain.NewPageRequest(page.Page, page.Size, "", "")
	orders, total, err := s.store.ListOrders(ctx, f, page)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.NewPage(orders, page, total), nil
}

func (s *OrderService) CountForUser(ctx context.Context, userID int64) (int64, error) {
	return s.store.CountOrders(ctx, userID)
}

func (s *OrderService) Pay(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error) {
	return s.transition(ctx, orderNumber, &userID, domain.OrderStatusPaid, nil)
}

// Ship is performed by staff, so it does not check ownership.
func (s *OrderService) Ship(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.transition(ctx, orderNumber, nil, domain.OrderStatusShipped, nil)
}

func (s *OrderService) ConfirmDelivery(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error) {
	return s.transition(ctx, orderNumber, &userID, domain.OrderStatusDelivered, nil)
}

// Cancel is allowed while the order is PENDING or PAID and puts every item
// back in stock within the same transaction.
func (s *OrderService) Cancel(ctx context.Context, userID int64, orderNumber string) (*domain.Order, error) {
	return s.transition(ctx, orderNumber, &userID, domain.OrderStatusCancelled, func(ctx context.Context, tx repository.Store, o *domain.Order) error {
		// same lock order as checkout
		items := slices.Clone(o.Items)
		slices.SortFunc(items, func(a, b domain.OrderItem) int { return cmp.Compare(a.ProductID, b.ProductID) })
		for _, it := range items {
			if err := tx.AddStock(ctx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("restore stock for product %d: %w", it.ProductID, err)
			}
		}
		return nil
	})
}

type afterTransition func(ctx context.Context, tx repository.Store, o *domain.Order) error

// transition moves the order to next when the status graph allows it. The
// update is conditional on the status read, so two concurrent transitions
// cannot both succeed. owner nil skips the ownership check.
func (s *OrderService) transition(ctx context.Context, orderNumber string, owner *int64, next domain.OrderStatus, after afterTransition) (o *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.transition")
	span.SetAttributes(attribute.String("order.number", orderNumber), attribute.String("order.next_status", next.String()))
	defer func() { endSpan(span, err) }()

	var from domain.OrderStatus
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var txErr error
		if o, txErr = tx.GetOrderByNumber(ctx, orderNumber); txErr != nil {
			return txErr
		}
		if owner != nil && o.UserID != *owner {
			return domain.ErrForbidden
		}
		from = o.Status
		if !from.CanTransitionTo(next) {
			return &domain.TransitionError{OrderNumber: orderNumber, From: from, To: next}
		}

		at := s.now().UTC()
		if txErr = tx.UpdateOrderStatus(ctx, orderNumber, from, next, at); txErr != nil {
			return txErr
		}
		if after != nil {
			if txErr = after(ctx, tx, o); txErr != nil {
				return txErr
			}
		}

		o.Status = next
		o.UpdatedAt = at
		stampTransition(o, next, at)

		ev, txErr := domain.NewOrderEvent(transitionEvents[next], o, at)
		if txErr != nil {
			return fmt.Errorf("build order event: %w", txErr)
		}
		return tx.InsertOutboxEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order status changed", "order_number", orderNumber, "from", from, "to", next)
	return o, nil
}

func stampTransition(o *domain.Order, next domain.OrderStatus, at time.Time) {
	switch next {
	case domain.OrderStatusPaid:
		o.PaidAt = &at
	case domain.OrderStatusShipped:
		o.ShippedAt = &at
	case domain.OrderStatusDelivered:
		o.DeliveredAt = &at
	case domain.OrderStatusCancelled:
		o.CancelledAt = &at
	}
}
