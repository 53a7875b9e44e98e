package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

const orderColumns = `id, order_number, user_id, status, shipping_address, recipient_name, recipient_phone,
	payment_method, notes, idempotency_key, paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

// transitionColumn is the timestamp stamped when an order enters the status.
var transitionColumn = map[domain.OrderStatus]string{
	domain.OrderStatusPaid:      "paid_at",
	domain.OrderStatusShipped:   "shipped_at",
	domain.OrderStatusDelivered: "delivered_at",
	domain.OrderStatusCancelled: "cancelled_at",
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var (
		o                                     domain.Order
		key                                   sql.NullString
		paidAt, shippedAt, deliveredAt, cnlAt sql.NullTime
	)
	err := s.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.Shipping.Address,
		&o.Shipping.RecipientName,
		&o.Shipping.RecipientPhone,
		&o.Shipping.PaymentMethod,
		&o.Shipping.Notes,
		&key,
		&paidAt,
		&shippedAt,
		&deliveredAt,
		&cnlAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.IdempotencyKey = key.String
	o.PaidAt = nullableTime(paidAt)
	o.ShippedAt = nullableTime(shippedAt)
	o.DeliveredAt = nullableTime(deliveredAt)
	o.CancelledAt = nullableTime(cnlAt)
	return &o, nil
}

// CreateOrder stores the order header and its item snapshots. It must run
// inside the checkout transaction.
func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order) error {
	now := r.now()
	key := sql.NullString{String: o.IdempotencyKey, Valid: o.IdempotencyKey != ""}

	query := `INSERT INTO orders (order_number, user_id, status, shipping_address, recipient_name, recipient_phone,
	                              payment_method, notes, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	          RETURNING id`

	err := r.q.QueryRowContext(ctx, query,
		o.OrderNumber,
		o.UserID,
		string(o.Status),
		o.Shipping.Address,
		o.Shipping.RecipientName,
		o.Shipping.RecipientPhone,
		o.Shipping.PaymentMethod,
		o.Shipping.Notes,
		key,
		now,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedColumn(err, "idempotency_key", "order_number") == "idempotency_key" {
				return ErrDuplicateIdempotencyKey
			}
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	o.CreatedAt = now
	o.UpdatedAt = now

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := r.q.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, product_price, quantity, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			it.OrderID,
			it.ProductID,
			it.ProductName,
			it.ProductPrice,
			it.Quantity,
			it.Subtotal,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *Repository) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return r.loadOrder(ctx, row, orderNumber)
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	return r.loadOrder(ctx, row, key)
}

func (r *Repository) loadOrder(ctx context.Context, row *sql.Row, key string) (*domain.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("order", key)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if o.Items, err = r.orderItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, product_price, quantity, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.ProductName,
			&it.ProductPrice,
			&it.Quantity,
			&it.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// ListOrders returns a page of orders, newest first, with their items.
func (r *Repository) ListOrders(ctx context.Context, f OrderFilter, page domain.PageRequest) ([]domain.Order, int64, error) {
	w := &where{}
	if f.UserID != nil {
		w.add("user_id = %[1]s", *f.UserID)
	}
	if f.Status != nil {
		w.add("status = %[1]s", string(*f.Status))
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET $%d`,
		orderColumns, w.String(), w.next(), len(w.args)+2)
	rows, err := r.q.QueryContext(ctx, query, append(w.args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	// items are read after closing: sqlite runs on a single connection
	rows.Close()

	for i := range orders {
		if orders[i].Items, err = r.orderItems(ctx, orders[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *Repository) CountOrders(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// UpdateOrderStatus moves the order from -> to only if it is still in from.
// A lost race or a wrong current status yields a *domain.TransitionError.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderNumber string, from, to domain.OrderStatus, at time.Time) error {
	col, ok := transitionColumn[to]
	if !ok {
		return &domain.TransitionError{OrderNumber: orderNumber, From: from, To: to}
	}

	query := fmt.Sprintf(`UPDATE orders SET status = $1, %s = $2, updated_at = $2
	                      WHERE order_number = $3 AND status = $4`, col)
	res, err := r.q.ExecContext(ctx, query, string(to), at, orderNumber, string(from))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current domain.OrderStatus
	err = r.q.QueryRowContext(ctx, `SELECT status FROM orders WHERE order_number = $1`, orderNumber).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("order", orderNumber)
	}
	if err != nil {
		return fmt.Errorf("query order status: %w", err)
	}
	return &domain.TransitionError{OrderNumber: orderNumber, From: current, To: to}
}
