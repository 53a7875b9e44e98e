package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_shop/internal/domain"
)

const productColumns = `id, name, description, price, stock, category, brand, image_url, rating, review_count, active, created_at, updated_at`

var productSortColumns = map[string]string{
	domain.SortByName:        "name",
	domain.SortByPrice:       "price",
	domain.SortByRating:      "rating",
	domain.SortByReviewCount: "review_count",
	domain.SortByCreatedAt:   "created_at",
	domain.SortByStock:       "stock",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (domain.Product, error) {
	var p domain.Product
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.Category,
		&p.Brand,
		&p.ImageURL,
		&p.Rating,
		&p.ReviewCount,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := r.now()
	query := `INSERT INTO products (name, description, price, stock, category, brand, image_url, rating, review_count, active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`

	err := r.q.QueryRowContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.Category,
		p.Brand,
		p.ImageURL,
		p.Rating,
		p.ReviewCount,
		p.Active,
		now,
		now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// ListProducts returns one page of active products matching q and the total
// number of matches.
func (r *Repository) ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, int64, error) {
	w := &where{}
	w.add("active = %[1]s", true)
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		w.add(`(LOWER(name) LIKE %[1]s ESCAPE '\' OR LOWER(description) LIKE %[1]s ESCAPE '\' OR LOWER(category) LIKE %[1]s ESCAPE '\')`, likePattern(kw))
	}
	if q.Category != "" {
		w.add("category = %[1]s", q.Category)
	}
	if q.Brand != "" {
		w.add("brand = %[1]s", q.Brand)
	}
	if q.MinPrice != nil {
		w.add("price >= %[1]s", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		w.add("price <= %[1]s", *q.MaxPrice)
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	page := q.Page
	if page.Size <= 0 {
		page = domain.NewPageRequest(page.Page, page.Size, page.SortBy, string(page.SortDir))
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT %s OFFSET $%d`,
		productColumns, w.String(), productOrderBy(page), w.next(), len(w.args)+2)
	args := append(w.args, page.Size, page.Offset())

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func productOrderBy(page domain.PageRequest) string {
	if page.SortBy == domain.SortByPopularity {
		return "rating DESC, review_count DESC, id ASC"
	}
	col, ok := productSortColumns[page.SortBy]
	if !ok {
		col = "name"
	}
	dir := "ASC"
	if page.SortDir == domain.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, id ASC", col, dir)
}

func (r *Repository) ProductsByCategory(ctx context.Context, category string, exclude []int64, limit int) ([]domain.Product, error) {
	w := &where{}
	w.add("category = %[1]s", category)
	return r.activeExcluding(ctx, w, exclude, "name ASC, id ASC", limit)
}

func (r *Repository) ProductsByBrand(ctx context.Context, brand string, exclude []int64, limit int) ([]domain.Product, error) {
	w := &where{}
	w.add("brand = %[1]s", brand)
	return r.activeExcluding(ctx, w, exclude, "name ASC, id ASC", limit)
}

func (r *Repository) MostReviewed(ctx context.Context, exclude []int64, limit int) ([]domain.Product, error) {
	return r.activeExcluding(ctx, &where{}, exclude, "review_count DESC, id ASC", limit)
}

func (r *Repository) activeExcluding(ctx context.Context, w *where, exclude []int64, orderBy string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		return nil, nil
	}
	w.add("active = %[1]s", true)
	if len(exclude) > 0 {
		placeholders := make([]string, 0, len(exclude))
		for _, id := range exclude {
			placeholders = append(placeholders, w.next())
			w.args = append(w.args, id)
		}
		w.addRaw("id NOT IN (" + strings.Join(placeholders, ", ") + ")")
	}
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT %s`, productColumns, w.String(), orderBy, w.next())
	return r.queryProducts(ctx, query, append(w.args, limit)...)
}

func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "category")
}

func (r *Repository) Brands(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "brand")
}

func (r *Repository) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM products WHERE active = $1 AND %[1]s <> '' ORDER BY %[1]s`, column)
	rows, err := r.q.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return values, nil
}

func (r *Repository) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE active = $1 AND stock <= $2 ORDER BY stock ASC, id ASC`
	return r.queryProducts(ctx, query, true, threshold)
}

// ReduceStock takes qty units only if they are all there. On failure stock
// is left untouched and a *domain.StockError describes the shortfall.
func (r *Repository) ReduceStock(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return domain.Validationf("quantity must be positive, got %d", qty)
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = $2
		 WHERE id = $3 AND active = $4 AND stock >= $1`,
		qty, r.now(), productID, true)
	if err != nil {
		return fmt.Errorf("reduce stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reduce stock rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	available := p.Stock
	if !p.Active {
		available = 0
	}
	return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: available}
}

func (r *Repository) AddStock(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return domain.Validationf("quantity must be positive, got %d", qty)
	}
	return r.updateProduct(ctx, productID,
		`UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3`, qty, r.now(), productID)
}

func (r *Repository) SetProductActive(ctx context.Context, productID int64, active bool) error {
	return r.updateProduct(ctx, productID,
		`UPDATE products SET active = $1, updated_at = $2 WHERE id = $3`, active, r.now(), productID)
}

func (r *Repository) updateProduct(ctx context.Context, productID int64, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if n == 0 {
		return notFound("product", productID)
	}
	return nil
}
