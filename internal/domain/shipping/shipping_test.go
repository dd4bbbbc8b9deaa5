package shipping

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/fault"
)

type mockOracle struct {
	options []Option
	err     error

	gotPostalCode string
	gotItems      []QuoteItem
}

func (m *mockOracle) Quote(_ context.Context, postalCode string, items []QuoteItem) ([]Option, error) {
	m.gotPostalCode = postalCode
	m.gotItems = items
	return m.options, m.err
}

func TestPostalCodeFromAddress(t *testing.T) {
	tests := []struct {
		name    string
		address map[string]any
		want    string
		wantErr bool
	}{
		{
			name:    "postal_code key",
			address: map[string]any{"postal_code": "01310-100"},
			want:    "01310-100",
		},
		{
			name:    "camel-case postalCode key",
			address: map[string]any{"postalCode": "01310-100"},
			want:    "01310-100",
		},
		{
			name:    "cep key",
			address: map[string]any{"cep": "01310-100"},
			want:    "01310-100",
		},
		{
			name:    "zip_code key",
			address: map[string]any{"zip_code": "01310-100"},
			want:    "01310-100",
		},
		{
			name:    "value is trimmed",
			address: map[string]any{"cep": "  01310-100  "},
			want:    "01310-100",
		},
		{
			name:    "first matching key wins",
			address: map[string]any{"postal_code": "11111-111", "cep": "22222-222"},
			want:    "11111-111",
		},
		{
			name:    "blank value is skipped",
			address: map[string]any{"postal_code": "   ", "cep": "01310-100"},
			want:    "01310-100",
		},
		{
			name:    "non-string value is skipped",
			address: map[string]any{"postal_code": 1310100},
			wantErr: true,
		},
		{
			name:    "no postal code at all",
			address: map[string]any{"street": "Av. Paulista"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PostalCodeFromAddress(tt.address)

			if tt.wantErr {
				var vErr *fault.ValidationError
				require.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecalculate_SelectsRequestedMethod(t *testing.T) {
	oracle := &mockOracle{options: []Option{
		{Method: "standard", Carrier: "Correios", PriceInCents: 1500, DeliveryDays: 7},
		{Method: "express", Carrier: "Jadlog", PriceInCents: 3500, DeliveryDays: 2},
	}}

	quote, err := NewRecalculator(oracle).Recalculate(context.Background(),
		[]cart.CheckoutItem{{ProductID: "p1", Quantity: 2}},
		map[string]any{"postal_code": "01310-100"},
		"express",
	)

	require.NoError(t, err)
	assert.Equal(t, int64(3500), quote.CostInCents)
	assert.Equal(t, "Jadlog", quote.Details.Carrier)

	assert.Equal(t, "01310-100", oracle.gotPostalCode)
	require.Len(t, oracle.gotItems, 1)
	assert.Equal(t, QuoteItem{ProductID: "p1", Quantity: 2}, oracle.gotItems[0])
}

func TestRecalculate_MethodMatchIsCaseInsensitive(t *testing.T) {
	oracle := &mockOracle{options: []Option{
		{Method: "Express", PriceInCents: 3500},
	}}

	quote, err := NewRecalculator(oracle).Recalculate(context.Background(),
		nil, map[string]any{"cep": "01310-100"}, "EXPRESS")

	require.NoError(t, err)
	assert.Equal(t, int64(3500), quote.CostInCents)
}

func TestRecalculate_MethodUnavailable(t *testing.T) {
	oracle := &mockOracle{options: []Option{
		{Method: "standard", PriceInCents: 1500},
	}}

	_, err := NewRecalculator(oracle).Recalculate(context.Background(),
		nil, map[string]any{"cep": "99999-999"}, "drone")

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), `"drone"`)
	assert.Contains(t, err.Error(), "99999-999")
}

func TestRecalculate_MissingPostalCode(t *testing.T) {
	oracle := &mockOracle{}

	_, err := NewRecalculator(oracle).Recalculate(context.Background(),
		nil, map[string]any{"street": "Rua A"}, "standard")

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, oracle.gotPostalCode, "oracle must not be called without a postal code")
}

func TestRecalculate_OracleError(t *testing.T) {
	oracle := &mockOracle{err: errors.New("rate service unavailable")}

	_, err := NewRecalculator(oracle).Recalculate(context.Background(),
		nil, map[string]any{"cep": "01310-100"}, "standard")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate service unavailable")
}
