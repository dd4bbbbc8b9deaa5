package order

import (
	"context"
	"time"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/domain/coupon"
	"github.com/blocohub/checkout/internal/domain/product"
	"github.com/blocohub/checkout/internal/domain/shipping"
)

// Order is an immutable financial snapshot taken at creation time.
// Invariant: TotalInCents == SubtotalInCents + ShippingCostInCents - DiscountInCents.
type Order struct {
	ID                  string
	UserID              string
	SubtotalInCents     int64
	DiscountInCents     int64
	ShippingCostInCents int64
	TotalInCents        int64
	PaymentMethod       string
	ShippingMethod      string
	ShippingAddress     map[string]any
	ShippingDetails     shipping.Option
	AppliedCoupons      []AppliedCoupon
	PaymentGateway      PaymentGateway
	Status              Status
	Items               []Item
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Item is an order line. The product name is snapshotted so later catalog
// renames do not corrupt order history.
type Item struct {
	ID               string
	ProductID        string
	ProductName      string
	Quantity         int
	UnitPriceInCents int64
	TotalInCents     int64
}

// AppliedCoupon is one entry of the order's coupon audit trail. Besides
// being part of the financial snapshot, it is what per-user and global
// usage limits are counted against on future orders.
type AppliedCoupon struct {
	ID              string      `json:"id"`
	Code            string      `json:"code"`
	DiscountInCents int64       `json:"discount_in_cents"`
	Type            coupon.Type `json:"type"`
}

// PaymentGateway holds the downstream payment gateway's metadata for the
// order, merged in as notifications arrive.
type PaymentGateway struct {
	GatewayID string         `json:"gateway_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Repository defines persistence operations for orders. Implementations
// are bound to the unit of work they were created in.
type Repository interface {
	// Insert persists the order and its line items.
	Insert(ctx context.Context, o *Order) error

	// Get loads an order with its items. Returns fault.NotFoundError when missing.
	Get(ctx context.Context, id string) (*Order, error)

	// GetForUpdate is Get with a row lock on the order, serializing
	// concurrent lifecycle transitions.
	GetForUpdate(ctx context.Context, id string) (*Order, error)

	// SetCanceled marks the order canceled.
	SetCanceled(ctx context.Context, id string) error

	// UpdatePayment stores the merged gateway metadata and the (possibly
	// advanced) status.
	UpdatePayment(ctx context.Context, id string, gw PaymentGateway, status Status) error
}

// Stores bundles every store a checkout transaction touches. All of them
// are bound to the same unit of work.
type Stores struct {
	Carts    cart.Store
	Products product.Store
	Coupons  coupon.Store
	Orders   Repository
}

// UnitOfWork runs callbacks against transaction-bound stores. Any error
// returned by the callback rolls the entire transaction back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error

	// View returns stores bound to the shared pool, for reads that need no
	// transaction (simulations, single-row lookups).
	View() Stores
}
