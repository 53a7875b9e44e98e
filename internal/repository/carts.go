package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

func (r *Repository) ActiveCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	var c domain.Cart
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, active, created_at, updated_at FROM carts WHERE user_id = $1 AND active = $2`,
		userID, true,
	).Scan(&c.ID, &c.UserID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("active cart for user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query active cart: %w", err)
	}
	return &c, nil
}

// GetOrCreateCart returns the user's active cart, creating it on first use.
// Losing a creation race to a concurrent request yields the winner's cart.
func (r *Repository) GetOrCreateCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	c, err := r.ActiveCart(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := r.now()
	c = &domain.Cart{UserID: userID, Active: true, CreatedAt: now, UpdatedAt: now}
	err = r.q.QueryRowContext(ctx,
		`INSERT INTO carts (user_id, active, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		userID, true, now, now,
	).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return r.ActiveCart(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}
	return c, nil
}

// CartLines joins every line of the cart with its live product row.
func (r *Repository) CartLines(ctx context.Context, cartID int64) ([]domain.CartLine, error) {
	query := `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price, ci.created_at, ci.updated_at,
	                 p.id, p.name, p.description, p.price, p.stock, p.category, p.brand, p.image_url,
	                 p.rating, p.review_count, p.active, p.created_at, p.updated_at
	          FROM cart_items ci
	          JOIN products p ON p.id = ci.product_id
	          WHERE ci.cart_id = $1
	          ORDER BY ci.created_at ASC, ci.id ASC`

	rows, err := r.q.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(
			&l.Item.ID,
			&l.Item.CartID,
			&l.Item.ProductID,
			&l.Item.Quantity,
			&l.Item.UnitPrice,
			&l.Item.CreatedAt,
			&l.Item.UpdatedAt,
			&l.Product.ID,
			&l.Product.Name,
			&l.Product.Description,
			&l.Product.Price,
			&l.Product.Stock,
			&l.Product.Category,
			&l.Product.Brand,
			&l.Product.ImageURL,
			&l.Product.Rating,
			&l.Product.ReviewCount,
			&l.Product.Active,
			&l.Product.CreatedAt,
			&l.Product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

const cartItemColumns = `id, cart_id, product_id, quantity, unit_price, created_at, updated_at`

func scanCartItem(s rowScanner, it *domain.CartItem, extra ...any) error {
	dest := append([]any{
		&it.ID,
		&it.CartID,
		&it.ProductID,
		&it.Quantity,
		&it.UnitPrice,
		&it.CreatedAt,
		&it.UpdatedAt,
	}, extra...)
	return s.Scan(dest...)
}

func (r *Repository) CartItemByProduct(ctx context.Context, cartID, productID int64) (*domain.CartItem, error) {
	var it domain.CartItem
	row := r.q.QueryRowContext(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	err := scanCartItem(row, &it)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("cart item for product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart item: %w", err)
	}
	return &it, nil
}

// CartItemOwner returns the line and the id of the user owning its cart.
func (r *Repository) CartItemOwner(ctx context.Context, itemID int64) (*domain.CartItem, int64, error) {
	var (
		it    domain.CartItem
		owner int64
	)
	row := r.q.QueryRowContext(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price, ci.created_at, ci.updated_at, c.user_id
		 FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		 WHERE ci.id = $1`, itemID)
	err := scanCartItem(row, &it, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, notFound("cart item", itemID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("query cart item: %w", err)
	}
	return &it, owner, nil
}

// UpsertCartItem inserts the line or adds its quantity to the existing line
// for the same product. item.ID and item.Quantity are updated to the stored row.
func (r *Repository) UpsertCartItem(ctx context.Context, item *domain.CartItem) error {
	now := r.now()
	query := `INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $5)
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + excluded.quantity,
	                        unit_price = excluded.unit_price,
	                        updated_at = excluded.updated_at
	          RETURNING id, quantity`

	err := r.q.QueryRowContext(ctx, query,
		item.CartID,
		item.ProductID,
		item.Quantity,
		item.UnitPrice,
		now,
	).Scan(&item.ID, &item.Quantity)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	item.UpdatedAt = now
	return r.touchCart(ctx, item.CartID, now)
}

func (r *Repository) UpdateCartItemQuantity(ctx context.Context, itemID int64, qty int) error {
	if qty <= 0 {
		return domain.Validationf("quantity must be positive, got %d", qty)
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1, updated_at = $2 WHERE id = $3`, qty, r.now(), itemID)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return expectOne(res, "cart item", itemID)
}

func (r *Repository) DeleteCartItem(ctx context.Context, itemID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return expectOne(res, "cart item", itemID)
}

func (r *Repository) ClearCart(ctx context.Context, cartID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return r.touchCart(ctx, cartID, r.now())
}

func (r *Repository) touchCart(ctx context.Context, cartID int64, at time.Time) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, at, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, what string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return notFound(what, key)
	}
	return nil
}
