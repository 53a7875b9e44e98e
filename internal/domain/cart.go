package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64
	UserID    int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a stored cart line. UnitPrice is the price seen when the line
// was added; display and checkout use the live product price.
type CartItem struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is a cart item joined with the live product row.
type CartLine struct {
	Item    CartItem
	Product Product
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Item.Quantity)))
}

func (l CartLine) InStock() bool {
	return l.Product.CanSupply(l.Item.Quantity)
}

type CartView struct {
	CartID int64
	UserID int64
	Lines  []CartLine
}

func (v *CartView) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range v.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (v *CartView) TotalQuantity() int {
	n := 0
	for _, l := range v.Lines {
		n += l.Item.Quantity
	}
	return n
}

func (v *CartView) IsEmpty() bool {
	return len(v.Lines) == 0
}

// Shortages returns the lines whose product can no longer cover the quantity.
func (v *CartView) Shortages() []*StockError {
	var out []*StockError
	for _, l := range v.Lines {
		if l.InStock() {
			continue
		}
		available := l.Product.Stock
		if !l.Product.Active {
			available = 0
		}
		out = append(out, &StockError{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Requested:   l.Item.Quantity,
			Available:   available,
		})
	}
	return out
}
