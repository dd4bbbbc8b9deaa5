// Package shipping re-derives the authoritative shipping cost for a chosen
// method. The client never supplies a shipping price: the cost is always
// quoted server-side by an external rate oracle from trusted item data.
package shipping

import (
	"context"
	"strings"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/fault"
)

// QuoteItem is the product/quantity pair sent to the rate oracle.
type QuoteItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Option is one shipping method offered by the oracle for a destination.
type Option struct {
	Method       string `json:"type"`
	Carrier      string `json:"carrier,omitempty"`
	PriceInCents int64  `json:"price_in_cents"`
	DeliveryDays int    `json:"delivery_days,omitempty"`
}

// Oracle quotes shipping options for a destination postal code.
type Oracle interface {
	Quote(ctx context.Context, postalCode string, items []QuoteItem) ([]Option, error)
}

// Quote is the authoritative result of recalculating shipping for an order.
type Quote struct {
	CostInCents int64
	Details     Option
}

// Address snapshots have gone through a few frontend generations; the
// postal code may live under any of these keys.
var postalCodeKeys = []string{"postal_code", "postalCode", "cep", "zip_code"}

// PostalCodeFromAddress extracts the destination postal code from an
// address snapshot, accepting the historical field names.
func PostalCodeFromAddress(address map[string]any) (string, error) {
	for _, key := range postalCodeKeys {
		if v, ok := address[key].(string); ok {
			if code := strings.TrimSpace(v); code != "" {
				return code, nil
			}
		}
	}
	return "", &fault.ValidationError{Msg: "endereço de entrega sem CEP"}
}

// Recalculator derives the trusted shipping cost for a requested method.
type Recalculator struct {
	oracle Oracle
}

// NewRecalculator creates a Recalculator backed by the given Oracle.
func NewRecalculator(oracle Oracle) *Recalculator {
	return &Recalculator{oracle: oracle}
}

// Recalculate quotes shipping for the validated cart items and selects the
// option matching the requested method. It fails with a validation error
// when the address has no postal code or when the oracle does not offer
// the requested method for that destination.
func (r *Recalculator) Recalculate(ctx context.Context, items []cart.CheckoutItem, address map[string]any, requestedMethod string) (*Quote, error) {
	postalCode, err := PostalCodeFromAddress(address)
	if err != nil {
		return nil, err
	}

	quoteItems := make([]QuoteItem, len(items))
	for i, item := range items {
		quoteItems[i] = QuoteItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	options, err := r.oracle.Quote(ctx, postalCode, quoteItems)
	if err != nil {
		return nil, err
	}

	for _, opt := range options {
		if strings.EqualFold(opt.Method, requestedMethod) {
			return &Quote{CostInCents: opt.PriceInCents, Details: opt}, nil
		}
	}
	return nil, fault.Validationf("método de envio %q indisponível para o CEP %s", requestedMethod, postalCode)
}
