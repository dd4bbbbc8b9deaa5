package product

import "context"

// Product is the live catalog row a cart item joins against at read time.
// All monetary values are integer cents.
type Product struct {
	ID                      string
	Name                    string
	PriceInCents            int64
	PromotionalPriceInCents *int64
	MinimumPriceInCents     int64
	StockQuantity           int
	IsActive                bool
}

// EffectiveUnitPriceInCents returns the promotional price when one is set,
// otherwise the regular price.
func (p Product) EffectiveUnitPriceInCents() int64 {
	if p.PromotionalPriceInCents != nil {
		return *p.PromotionalPriceInCents
	}
	return p.PriceInCents
}

// Store mutates product stock. Decrements happen inside the checkout
// transaction, increments inside the cancellation transaction.
type Store interface {
	// DecrementStock subtracts qty from the product's stock. It fails with a
	// validation error when the remaining stock is insufficient, so a
	// concurrent checkout of the last units degrades to a failed checkout
	// instead of negative stock.
	DecrementStock(ctx context.Context, productID string, qty int) error

	// IncrementStock returns qty units to the product's stock.
	IncrementStock(ctx context.Context, productID string, qty int) error
}
