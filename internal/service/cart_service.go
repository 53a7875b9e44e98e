package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
)

type CartService struct {
	store repository.Store
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{store: store}
}

// Get returns the caller's cart joined with live product data. A user
// without a cart gets an empty view.
func (s *CartService) Get(ctx context.Context, userID int64) (*domain.CartView, error) {
	return loadCart(ctx, s.store, userID)
}

func loadCart(ctx context.Context, store repository.CartStore, userID int64) (*domain.CartView, error) {
	cart, err := store.ActiveCart(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.CartView{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := store.CartLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return &domain.CartView{CartID: cart.ID, UserID: userID, Lines: lines}, nil
}

// Add puts qty units of the product in the cart, merging with an existing
// line. The merged quantity must still be in stock.
func (s *CartService) Add(ctx context.Context, userID, productID int64, qty int) (*domain.CartView, error) {
	var view *domain.CartView
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := addToCart(ctx, tx, userID, productID, qty); err != nil {
			return err
		}
		var err error
		view, err = loadCart(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "cart item added", "user_id", userID, "product_id", productID, "quantity", qty)
	return view, nil
}

func addToCart(ctx context.Context, tx repository.Store, userID, productID int64, qty int) error {
	if qty < 1 {
		return domain.Validationf("quantity must be at least 1")
	}

	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return notOnSale(p)
	}
	if p.Stock < qty {
		return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
	}

	cart, err := tx.GetOrCreateCart(ctx, userID)
	if err != nil {
		return err
	}

	combined := qty
	existing, err := tx.CartItemByProduct(ctx, cart.ID, productID)
	switch {
	case err == nil:
		combined += existing.Quantity
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	if p.Stock < combined {
		return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Requested: combined, Available: p.Stock}
	}

	return tx.UpsertCartItem(ctx, &domain.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: p.Price,
	})
}

// Update sets the quantity of one line; qty <= 0 removes it.
func (s *CartService) Update(ctx context.Context, userID, itemID int64, qty int) (*domain.CartView, error) {
	var view *domain.CartView
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		item, err := ownedItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}

		if qty <= 0 {
			err = tx.DeleteCartItem(ctx, item.ID)
		} else {
			var p *domain.Product
			if p, err = tx.GetProduct(ctx, item.ProductID); err != nil {
				return err
			}
			if !p.CanSupply(qty) {
				available := p.Stock
				if !p.Active {
					available = 0
				}
				return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: available}
			}
			err = tx.UpdateCartItemQuantity(ctx, item.ID, qty)
		}
		if err != nil {
			return err
		}

		view, err = loadCart(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *CartService) Remove(ctx context.Context, userID, itemID int64) error {
	return s.store.WithTx(ctx, func(tx repository.Store) error {
		item, err := ownedItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, item.ID)
	})
}

func (s *CartService) Clear(ctx context.Context, userID int64) error {
	cart, err := s.store.ActiveCart(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.ClearCart(ctx, cart.ID)
}

// Count is the number of units in the cart, not the number of lines.
func (s *CartService) Count(ctx context.Context, userID int64) (int, error) {
	view, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return view.TotalQuantity(), nil
}

// Validate lists the lines that could not be checked out right now.
func (s *CartService) Validate(ctx context.Context, userID int64) ([]*domain.StockError, error) {
	view, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	short := view.Shortages()
	if short == nil {
		short = []*domain.StockError{}
	}
	return short, nil
}

func ownedItem(ctx context.Context, tx repository.CartStore, userID, itemID int64) (*domain.CartItem, error) {
	item, owner, err := tx.CartItemOwner(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, domain.ErrForbidden
	}
	return item, nil
}

func notOnSale(p *domain.Product) error {
	return fmt.Errorf("%w: product %d is no longer on sale", domain.ErrNotFound, p.ID)
}
