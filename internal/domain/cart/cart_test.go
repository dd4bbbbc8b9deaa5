package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocohub/checkout/internal/domain/product"
	"github.com/blocohub/checkout/internal/fault"
)

func activeProduct(id, name string, price int64, stock int) product.Product {
	return product.Product{
		ID:            id,
		Name:          name,
		PriceInCents:  price,
		StockQuantity: stock,
		IsActive:      true,
	}
}

func TestValidateCheckoutable_EmptyCart(t *testing.T) {
	_, err := ValidateCheckoutable(nil)

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "carrinho vazio", vErr.Msg)
}

func TestValidateCheckoutable_InactiveProduct(t *testing.T) {
	p := activeProduct("p1", "Widget", 1000, 10)
	p.IsActive = false

	_, err := ValidateCheckoutable([]Row{{ProductID: "p1", Quantity: 1, Product: p}})

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "não está mais disponível")
	assert.Contains(t, err.Error(), "Widget")
}

func TestValidateCheckoutable_InsufficientStock(t *testing.T) {
	p := activeProduct("p1", "Widget", 1000, 2)

	_, err := ValidateCheckoutable([]Row{{ProductID: "p1", Quantity: 3, Product: p}})

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "estoque insuficiente")
}

func TestValidateCheckoutable_EnrichesItems(t *testing.T) {
	promo := int64(800)
	p1 := activeProduct("p1", "Widget", 1000, 10)
	p1.PromotionalPriceInCents = &promo
	p1.MinimumPriceInCents = 700
	p2 := activeProduct("p2", "Gadget", 2500, 5)

	items, err := ValidateCheckoutable([]Row{
		{ProductID: "p1", Quantity: 2, Product: p1},
		{ProductID: "p2", Quantity: 1, Product: p2},
	})

	require.NoError(t, err)
	require.Len(t, items, 2)

	// Promotional price wins over the regular price.
	assert.Equal(t, int64(800), items[0].UnitPriceInCents)
	assert.Equal(t, int64(700), items[0].MinimumPriceInCents)
	assert.Equal(t, int64(1600), items[0].TotalInCents())

	assert.Equal(t, int64(2500), items[1].UnitPriceInCents)
	assert.Equal(t, "Gadget", items[1].ProductName)
}

func TestValidateCheckoutable_QuantityEqualToStock(t *testing.T) {
	p := activeProduct("p1", "Widget", 1000, 3)

	items, err := ValidateCheckoutable([]Row{{ProductID: "p1", Quantity: 3, Product: p}})

	require.NoError(t, err)
	assert.Len(t, items, 1)
}
