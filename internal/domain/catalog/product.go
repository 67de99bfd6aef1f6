package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a point-in-time snapshot of a catalog item. Orders copy the
// fields they need at creation time and never read the live record again.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	StockQuantity int
	Active        bool
}

// UnitPrice returns the effective selling price: the active discount price
// when present, the list price otherwise.
func (p Product) UnitPrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
