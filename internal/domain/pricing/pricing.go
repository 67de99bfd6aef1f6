// Package pricing turns cart line requests into priced line items. It is a
// pure calculation over a point-in-time product snapshot; nothing here talks
// to storage.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/catalog"
)

// DeliveryArea selects the shipping cost tier for an order.
type DeliveryArea string

const (
	// AreaInsideZone is the local delivery tier.
	AreaInsideZone DeliveryArea = "inside_zone"
	// AreaOutsideZone is the out-of-town delivery tier.
	AreaOutsideZone DeliveryArea = "outside_zone"
)

// UnknownProductError indicates a cart line references a product that does
// not exist. The whole request fails; lines are never silently dropped.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InactiveProductError indicates a cart line references a product that is no
// longer sold.
type InactiveProductError struct {
	ProductID string
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// UnknownAreaError indicates the delivery area is missing or not one of the
// configured tiers. Unspecified areas are rejected rather than silently
// mapped to a default tier.
type UnknownAreaError struct {
	Area DeliveryArea
}

func (e *UnknownAreaError) Error() string {
	return fmt.Sprintf("unknown delivery area %q", string(e.Area))
}

// LineRequest is a single (product, quantity) entry from the cart.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// Line is a priced line item with the product snapshot captured at quote time.
type Line struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
}

// Quote is the output of the calculator: priced lines plus the subtotal and
// resolved shipping cost. No coupon discount is applied here; the caller
// layers that on before computing the final total.
type Quote struct {
	Lines        []Line
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
}

// ShippingTable maps delivery areas to their flat shipping cost. The table
// comes from configuration, not per-request input.
type ShippingTable struct {
	InsideZone  decimal.Decimal
	OutsideZone decimal.Decimal
}

// Cost resolves the shipping cost for the given area.
func (t ShippingTable) Cost(area DeliveryArea) (decimal.Decimal, error) {
	switch area {
	case AreaInsideZone:
		return t.InsideZone, nil
	case AreaOutsideZone:
		return t.OutsideZone, nil
	default:
		return decimal.Zero, &UnknownAreaError{Area: area}
	}
}

// Calculator prices cart requests against product snapshots.
type Calculator struct {
	shipping ShippingTable
}

// NewCalculator creates a Calculator with the given shipping table.
func NewCalculator(shipping ShippingTable) *Calculator {
	return &Calculator{shipping: shipping}
}

// Quote prices the requested lines. Every line must reference an existing,
// active product with a positive quantity; the first violation fails the
// whole quote. The unit price prefers the active discount price over the
// list price.
func (c *Calculator) Quote(products map[string]catalog.Product, items []LineRequest, area DeliveryArea) (*Quote, error) {
	shippingCost, err := c.shipping.Cost(area)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		p, ok := products[item.ProductID]
		if !ok {
			return nil, &UnknownProductError{ProductID: item.ProductID}
		}
		if !p.Active {
			return nil, &InactiveProductError{ProductID: item.ProductID}
		}

		unit := p.UnitPrice()
		lineSubtotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, Line{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   unit,
			Quantity:    item.Quantity,
			Subtotal:    lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}

	return &Quote{
		Lines:        lines,
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
	}, nil
}
