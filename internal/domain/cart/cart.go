// Package cart decides whether a user's cart is sellable right now.
//
// Cart items carry no price snapshot: rows are always joined live to the
// product table, so checkoutability is evaluated against current stock,
// price, and active flags. That evaluation must happen inside the same
// transaction as the rest of checkout to avoid acting on stale stock data.
package cart

import (
	"context"

	"github.com/blocohub/checkout/internal/domain/product"
	"github.com/blocohub/checkout/internal/fault"
)

// Row is a cart item joined live to its product.
type Row struct {
	ProductID string
	Quantity  int
	Product   product.Product
}

// CheckoutItem is a cart row enriched with the pricing data the order
// pipeline needs: the effective unit price (promotional price when set)
// and the per-product minimum price floor.
type CheckoutItem struct {
	ProductID           string
	ProductName         string
	Quantity            int
	UnitPriceInCents    int64
	MinimumPriceInCents int64
}

// TotalInCents returns the line total for this item.
func (i CheckoutItem) TotalInCents() int64 {
	return i.UnitPriceInCents * int64(i.Quantity)
}

// SyncItem is one entry of a client-side cart being merged into the
// server-side cart on login.
type SyncItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Store persists cart items keyed by user.
type Store interface {
	// ItemsWithProducts loads the user's cart rows joined to live product data.
	ItemsWithProducts(ctx context.Context, userID string) ([]Row, error)

	// Clear removes every cart item for the user.
	Clear(ctx context.Context, userID string) error

	// Add inserts a cart item, merging quantities when the product is
	// already in the cart.
	Add(ctx context.Context, userID, productID string, quantity int) error

	// Remove deletes a single product from the cart.
	Remove(ctx context.Context, userID, productID string) error

	// Merge adds a batch of client-side items to the server-side cart,
	// summing quantities for products present on both sides.
	Merge(ctx context.Context, userID string, items []SyncItem) error
}

// ValidateCheckoutable is the single point where "is this cart sellable"
// is decided. It fails when the cart is empty, when any product is
// inactive, or when any product has less stock than the requested
// quantity; otherwise it returns the enriched checkout items.
func ValidateCheckoutable(rows []Row) ([]CheckoutItem, error) {
	if len(rows) == 0 {
		return nil, &fault.ValidationError{Msg: "carrinho vazio"}
	}

	items := make([]CheckoutItem, len(rows))
	for i, row := range rows {
		p := row.Product
		if !p.IsActive {
			return nil, fault.Validationf("produto %q não está mais disponível", p.Name)
		}
		if p.StockQuantity < row.Quantity {
			return nil, fault.Validationf("estoque insuficiente para o produto %q", p.Name)
		}

		items[i] = CheckoutItem{
			ProductID:           p.ID,
			ProductName:         p.Name,
			Quantity:            row.Quantity,
			UnitPriceInCents:    p.EffectiveUnitPriceInCents(),
			MinimumPriceInCents: p.MinimumPriceInCents,
		}
	}
	return items, nil
}
