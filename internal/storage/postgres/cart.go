package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/domain/product"
)

const (
	cartRowsSQL = `SELECT ci.product_id, ci.quantity,
		p.id, p.name, p.price_in_cents, p.promotional_price_in_cents,
		p.minimum_price_in_cents, p.stock_quantity, p.is_active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	mergeCartSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		SELECT $1, u.product_id, u.quantity
		FROM unnest($2::text[], $3::int[]) AS u(product_id, quantity)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL.
type CartStore struct {
	db DB
}

// ItemsWithProducts loads the user's cart rows joined live to product data.
func (s *CartStore) ItemsWithProducts(ctx context.Context, userID string) ([]cart.Row, error) {
	rows, err := s.db.Query(ctx, cartRowsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}

	items, err := pgx.CollectRows(rows, scanCartRow)
	if err != nil {
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}
	return items, nil
}

// Clear removes every cart item for the user.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

// Add upserts a cart item, summing quantities on conflict.
func (s *CartStore) Add(ctx context.Context, userID, productID string, quantity int) error {
	if _, err := s.db.Exec(ctx, addCartItemSQL, userID, productID, quantity); err != nil {
		return fmt.Errorf("adding product %q to cart: %w", productID, err)
	}
	return nil
}

// Remove deletes a single product from the cart.
func (s *CartStore) Remove(ctx context.Context, userID, productID string) error {
	if _, err := s.db.Exec(ctx, removeCartItemSQL, userID, productID); err != nil {
		return fmt.Errorf("removing product %q from cart: %w", productID, err)
	}
	return nil
}

// Merge adds a batch of client-side items in one statement, summing
// quantities for products already in the server-side cart.
func (s *CartStore) Merge(ctx context.Context, userID string, items []cart.SyncItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	quantities := make([]int32, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
		quantities[i] = int32(item.Quantity)
	}

	if _, err := s.db.Exec(ctx, mergeCartSQL, userID, ids, quantities); err != nil {
		return fmt.Errorf("merging cart for user %q: %w", userID, err)
	}
	return nil
}

func scanCartRow(row pgx.CollectableRow) (cart.Row, error) {
	var (
		r     cart.Row
		p     product.Product
		promo *int64
	)
	err := row.Scan(
		&r.ProductID, &r.Quantity,
		&p.ID, &p.Name, &p.PriceInCents, &promo,
		&p.MinimumPriceInCents, &p.StockQuantity, &p.IsActive,
	)
	p.PromotionalPriceInCents = promo
	r.Product = p
	return r, err
}
