package postgres

import (
	"context"
	"fmt"

	"github.com/blocohub/checkout/internal/domain/product"
	"github.com/blocohub/checkout/internal/fault"
)

const (
	// The stock guard makes a concurrent checkout of the last units fail
	// instead of driving stock negative. Product rows are intentionally not
	// locked beforehand; see the order service.
	decrementStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2`

	incrementStockSQL = `UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1`
)

var _ product.Store = (*ProductStore)(nil)

// ProductStore implements product.Store backed by PostgreSQL.
type ProductStore struct {
	db DB
}

// DecrementStock subtracts qty from the product's stock, failing with a
// validation error when not enough stock remains.
func (s *ProductStore) DecrementStock(ctx context.Context, productID string, qty int) error {
	tag, err := s.db.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fault.Validationf("estoque insuficiente para o produto %q", productID)
	}
	return nil
}

// IncrementStock returns qty units to the product's stock.
func (s *ProductStore) IncrementStock(ctx context.Context, productID string, qty int) error {
	tag, err := s.db.Exec(ctx, incrementStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("incrementing stock of product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &fault.NotFoundError{Entity: "produto", Key: productID}
	}
	return nil
}
