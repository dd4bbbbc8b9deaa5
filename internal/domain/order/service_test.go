package order

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/domain/coupon"
	"github.com/blocohub/checkout/internal/domain/product"
	"github.com/blocohub/checkout/internal/domain/shipping"
	"github.com/blocohub/checkout/internal/fault"
)

// --- Mock implementations ---

type mockCartStore struct {
	rows     []cart.Row
	loadErr  error
	cleared  []string
	clearErr error
}

func (m *mockCartStore) ItemsWithProducts(_ context.Context, _ string) ([]cart.Row, error) {
	return m.rows, m.loadErr
}

func (m *mockCartStore) Clear(_ context.Context, userID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, userID)
	return nil
}

func (m *mockCartStore) Add(_ context.Context, _, _ string, _ int) error  { return nil }
func (m *mockCartStore) Remove(_ context.Context, _, _ string) error      { return nil }
func (m *mockCartStore) Merge(_ context.Context, _ string, _ []cart.SyncItem) error {
	return nil
}

type mockProductStore struct {
	stock  map[string]int
	decErr error
	incErr error
}

func (m *mockProductStore) DecrementStock(_ context.Context, productID string, qty int) error {
	if m.decErr != nil {
		return m.decErr
	}
	if m.stock[productID] < qty {
		return fault.Validationf("estoque insuficiente para o produto %q", productID)
	}
	m.stock[productID] -= qty
	return nil
}

func (m *mockProductStore) IncrementStock(_ context.Context, productID string, qty int) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.stock[productID] += qty
	return nil
}

type mockCouponStore struct {
	byCode      map[string]*coupon.Coupon
	userChecked []string
}

func (m *mockCouponStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, &fault.NotFoundError{Entity: "cupom", Key: code}
	}
	return c, nil
}

func (m *mockCouponStore) CountUsageByUser(_ context.Context, couponID, _ string) (int, error) {
	m.userChecked = append(m.userChecked, couponID)
	return 0, nil
}

func (m *mockCouponStore) CountUsageGlobal(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type mockOrderRepo struct {
	byID      map[string]*Order
	inserted  *Order
	insertErr error
	canceled  []string
	lastGw    PaymentGateway
	lastSt    Status
}

func (m *mockOrderRepo) Insert(_ context.Context, o *Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = o
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, &fault.NotFoundError{Entity: "pedido", Key: id}
	}
	return o, nil
}

func (m *mockOrderRepo) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	return m.Get(ctx, id)
}

func (m *mockOrderRepo) SetCanceled(_ context.Context, id string) error {
	m.canceled = append(m.canceled, id)
	return nil
}

func (m *mockOrderRepo) UpdatePayment(_ context.Context, _ string, gw PaymentGateway, status Status) error {
	m.lastGw = gw
	m.lastSt = status
	return nil
}

type mockUOW struct {
	st      Stores
	txCalls int
}

func (m *mockUOW) WithinTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
	m.txCalls++
	return fn(ctx, m.st)
}

func (m *mockUOW) View() Stores { return m.st }

type mockOracle struct {
	options []shipping.Option
	err     error
}

func (m *mockOracle) Quote(_ context.Context, _ string, _ []shipping.QuoteItem) ([]shipping.Option, error) {
	return m.options, m.err
}

// --- Helpers ---

type fixture struct {
	carts    *mockCartStore
	products *mockProductStore
	coupons  *mockCouponStore
	orders   *mockOrderRepo
	uow      *mockUOW
	svc      *Service
}

func newFixture(oracle shipping.Oracle) *fixture {
	f := &fixture{
		carts:    &mockCartStore{},
		products: &mockProductStore{stock: make(map[string]int)},
		coupons:  &mockCouponStore{byCode: make(map[string]*coupon.Coupon)},
		orders:   &mockOrderRepo{byID: make(map[string]*Order)},
	}
	f.uow = &mockUOW{st: Stores{
		Carts:    f.carts,
		Products: f.products,
		Coupons:  f.coupons,
		Orders:   f.orders,
	}}
	f.svc = NewService(f.uow, oracle)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	f.svc.nextID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return f
}

func (f *fixture) withCartRow(p product.Product, qty int) {
	f.carts.rows = append(f.carts.rows, cart.Row{ProductID: p.ID, Quantity: qty, Product: p})
	f.products.stock[p.ID] = p.StockQuantity
}

func sellable(id string, price int64, stock int) product.Product {
	return product.Product{
		ID:            id,
		Name:          "Produto " + id,
		PriceInCents:  price,
		StockQuantity: stock,
		IsActive:      true,
	}
}

func standardOracle(priceInCents int64) *mockOracle {
	return &mockOracle{options: []shipping.Option{
		{Method: "standard", Carrier: "Correios", PriceInCents: priceInCents, DeliveryDays: 7},
	}}
}

func checkoutReq(userID string, codes ...string) CheckoutRequest {
	return CheckoutRequest{
		UserID:          userID,
		PaymentMethod:   "pix",
		ShippingAddress: map[string]any{"postal_code": "01310-100"},
		ShippingMethod:  "standard",
		CouponCodes:     codes,
	}
}

// --- Checkout ---

func TestCheckout_HappyPath(t *testing.T) {
	f := newFixture(standardOracle(1500))
	f.withCartRow(sellable("p1", 5000, 10), 2)
	f.withCartRow(sellable("p2", 3000, 5), 1)

	o, err := f.svc.Checkout(context.Background(), checkoutReq("u1"))

	require.NoError(t, err)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(13000), o.SubtotalInCents)
	assert.Equal(t, int64(1500), o.ShippingCostInCents)
	assert.Equal(t, int64(0), o.DiscountInCents)
	assert.Equal(t, int64(14500), o.TotalInCents)
	assert.Equal(t, "Correios", o.ShippingDetails.Carrier)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "Produto p1", o.Items[0].ProductName)
	assert.Equal(t, int64(10000), o.Items[0].TotalInCents)

	// Stock reserved, order persisted, cart cleared.
	assert.Equal(t, 8, f.products.stock["p1"])
	assert.Equal(t, 4, f.products.stock["p2"])
	assert.Same(t, o, f.orders.inserted)
	assert.Equal(t, []string{"u1"}, f.carts.cleared)
	assert.Equal(t, 1, f.uow.txCalls)
}

func TestCheckout_WithCoupon(t *testing.T) {
	f := newFixture(standardOracle(1000))
	f.withCartRow(sellable("p1", 10000, 10), 1)
	f.coupons.byCode["DEZ"] = &coupon.Coupon{
		ID:                 "c1",
		Code:               "DEZ",
		Type:               coupon.TypeSubtotal,
		DiscountPercentage: decimal.NewFromInt(10),
		IsActive:           true,
	}

	o, err := f.svc.Checkout(context.Background(), checkoutReq("u1", "dez"))

	require.NoError(t, err)
	assert.Equal(t, int64(1000), o.DiscountInCents)
	assert.Equal(t, int64(10000), o.TotalInCents)
	require.Len(t, o.AppliedCoupons, 1)
	assert.Equal(t, "DEZ", o.AppliedCoupons[0].Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(standardOracle(1500))

	_, err := f.svc.Checkout(context.Background(), checkoutReq("u1"))

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "carrinho vazio", vErr.Msg)
	assert.Nil(t, f.orders.inserted)
	assert.Empty(t, f.carts.cleared)
}

func TestCheckout_UnknownCouponAborts(t *testing.T) {
	f := newFixture(standardOracle(1500))
	f.withCartRow(sellable("p1", 5000, 10), 1)

	_, err := f.svc.Checkout(context.Background(), checkoutReq("u1", "BOGUS"))

	var nfErr *fault.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	// Nothing was reserved or persisted.
	assert.Equal(t, 10, f.products.stock["p1"])
	assert.Nil(t, f.orders.inserted)
	assert.Empty(t, f.carts.cleared)
}

func TestCheckout_ShippingMethodUnavailable(t *testing.T) {
	f := newFixture(standardOracle(1500))
	f.withCartRow(sellable("p1", 5000, 10), 1)

	req := checkoutReq("u1")
	req.ShippingMethod = "drone"
	_, err := f.svc.Checkout(context.Background(), req)

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Nil(t, f.orders.inserted)
}

func TestCheckout_StockRaceDegradesToFailure(t *testing.T) {
	// The cart validated against a snapshot, but a concurrent checkout took
	// the last units before the decrement ran.
	f := newFixture(standardOracle(1500))
	f.withCartRow(sellable("p1", 5000, 10), 1)
	f.products.decErr = fault.Validationf("estoque insuficiente para o produto %q", "p1")

	_, err := f.svc.Checkout(context.Background(), checkoutReq("u1"))

	var vErr *fault.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Nil(t, f.orders.inserted)
	assert.Empty(t, f.carts.cleared)
}

func TestCheckout_InsertErrorAborts(t *testing.T) {
	f := newFixture(standardOracle(1500))
	f.withCartRow(sellable("p1", 5000, 10), 1)
	f.orders.insertErr = errors.New("db write failed")

	_, err := f.svc.Checkout(context.Background(), checkoutReq("u1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order")
	assert.Empty(t, f.carts.cleared)
}

// --- Simulate ---

func TestSimulate_PricesWithoutMutating(t *testing.T) {
	f := newFixture(standardOracle(1000))
	f.withCartRow(sellable("p1", 10000, 10), 1)
	f.coupons.byCode["DEZ"] = &coupon.Coupon{
		ID:                 "c1",
		Code:               "DEZ",
		Type:               coupon.TypeSubtotal,
		DiscountPercentage: decimal.NewFromInt(10),
		IsActive:           true,
	}

	sim, err := f.svc.Simulate(context.Background(), checkoutReq("u1", "DEZ"))

	require.NoError(t, err)
	assert.Equal(t, int64(10000), sim.Totals.SubtotalInCents)
	assert.Equal(t, int64(1000), sim.Totals.DiscountInCents)
	assert.Equal(t, int64(10000), sim.Totals.TotalInCents)
	assert.Equal(t, "Correios", sim.ShippingDetails.Carrier)

	// No transaction, no reservation, no order, no cart clearing.
	assert.Equal(t, 0, f.uow.txCalls)
	assert.Equal(t, 10, f.products.stock["p1"])
	assert.Nil(t, f.orders.inserted)
	assert.Empty(t, f.carts.cleared)
}

func TestSimulate_SkipsPerUserCouponCheck(t *testing.T) {
	f := newFixture(standardOracle(1000))
	f.withCartRow(sellable("p1", 10000, 10), 1)
	f.coupons.byCode["UMAVEZ"] = &coupon.Coupon{
		ID:                 "c1",
		Code:               "UMAVEZ",
		Type:               coupon.TypeSubtotal,
		DiscountPercentage: decimal.NewFromInt(10),
		UsageLimitPerUser:  1,
		IsActive:           true,
	}

	_, err := f.svc.Simulate(context.Background(), checkoutReq("u1", "UMAVEZ"))

	require.NoError(t, err)
	assert.Empty(t, f.coupons.userChecked)
}

// --- Cancel ---

func pendingOrder(id string) *Order {
	return &Order{
		ID:     id,
		UserID: "u1",
		Status: StatusPending,
		Items: []Item{
			{ID: "i1", ProductID: "p1", Quantity: 2},
			{ID: "i2", ProductID: "p2", Quantity: 1},
		},
	}
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(standardOracle(0))
	f.products.stock["p1"] = 3
	f.products.stock["p2"] = 0
	f.orders.byID["o1"] = pendingOrder("o1")

	o, err := f.svc.Cancel(context.Background(), "o1")

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, o.Status)
	assert.Equal(t, []string{"o1"}, f.orders.canceled)
	assert.Equal(t, 5, f.products.stock["p1"])
	assert.Equal(t, 1, f.products.stock["p2"])
}

func TestCancel_PaidOrderIsCancelable(t *testing.T) {
	f := newFixture(standardOracle(0))
	po := pendingOrder("o1")
	po.Status = StatusPaid
	f.orders.byID["o1"] = po

	o, err := f.svc.Cancel(context.Background(), "o1")

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, o.Status)
}

func TestCancel_AlreadyCanceledIsNoOp(t *testing.T) {
	f := newFixture(standardOracle(0))
	po := pendingOrder("o1")
	po.Status = StatusCanceled
	f.orders.byID["o1"] = po
	f.products.stock["p1"] = 3

	o, err := f.svc.Cancel(context.Background(), "o1")

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, o.Status)
	// Stock must not be restored twice.
	assert.Equal(t, 3, f.products.stock["p1"])
	assert.Empty(t, f.orders.canceled)
}

func TestCancel_ShippedOrderFails(t *testing.T) {
	f := newFixture(standardOracle(0))
	po := pendingOrder("o1")
	po.Status = StatusShipped
	f.orders.byID["o1"] = po
	f.products.stock["p1"] = 3

	_, err := f.svc.Cancel(context.Background(), "o1")

	var sErr *fault.ServiceError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, 3, f.products.stock["p1"])
	assert.Empty(t, f.orders.canceled)
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(standardOracle(0))

	_, err := f.svc.Cancel(context.Background(), "missing")

	var nfErr *fault.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

// --- Payment updates ---

func TestUpdatePaymentInfo_ApprovedAdvancesPendingToPaid(t *testing.T) {
	f := newFixture(standardOracle(0))
	f.orders.byID["o1"] = pendingOrder("o1")

	o, err := f.svc.UpdatePaymentInfo(context.Background(), "o1", "gw-123",
		map[string]any{"authorization_code": "abc"}, "approved")

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "gw-123", o.PaymentGateway.GatewayID)
	assert.Equal(t, "approved", o.PaymentGateway.Status)
	assert.Equal(t, "abc", o.PaymentGateway.Data["authorization_code"])
	assert.Equal(t, StatusPaid, f.orders.lastSt)
}

func TestUpdatePaymentInfo_NonApprovedOnlyRecordsMetadata(t *testing.T) {
	f := newFixture(standardOracle(0))
	f.orders.byID["o1"] = pendingOrder("o1")

	o, err := f.svc.UpdatePaymentInfo(context.Background(), "o1", "gw-123", nil, "in_analysis")

	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "in_analysis", o.PaymentGateway.Status)
}

func TestUpdatePaymentInfo_ApprovedOnPaidOrderIsIdempotent(t *testing.T) {
	f := newFixture(standardOracle(0))
	po := pendingOrder("o1")
	po.Status = StatusPaid
	po.PaymentGateway = PaymentGateway{GatewayID: "gw-123", Status: "approved"}
	f.orders.byID["o1"] = po

	o, err := f.svc.UpdatePaymentInfo(context.Background(), "o1", "", nil, "approved")

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "gw-123", o.PaymentGateway.GatewayID)
}

func TestUpdatePaymentInfo_MergesGatewayData(t *testing.T) {
	f := newFixture(standardOracle(0))
	po := pendingOrder("o1")
	po.PaymentGateway = PaymentGateway{Data: map[string]any{"attempt": 1}}
	f.orders.byID["o1"] = po

	o, err := f.svc.UpdatePaymentInfo(context.Background(), "o1", "",
		map[string]any{"receipt_url": "https://gw.example/r/1"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, o.PaymentGateway.Data["attempt"])
	assert.Equal(t, "https://gw.example/r/1", o.PaymentGateway.Data["receipt_url"])
}

// --- Get ---

func TestGet(t *testing.T) {
	f := newFixture(standardOracle(0))
	f.orders.byID["o1"] = pendingOrder("o1")

	o, err := f.svc.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	_, err = f.svc.Get(context.Background(), "missing")
	var nfErr *fault.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}
