package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type selects the monetary base a coupon's percentage applies to.
type Type string

const (
	// TypeSubtotal discounts a percentage of the product subtotal.
	TypeSubtotal Type = "subtotal"
	// TypeShipping discounts a percentage of the shipping cost.
	TypeShipping Type = "shipping"
)

// SimulationUserID is the sentinel caller identity used by checkout
// simulations. It skips the per-user usage check (no real user to
// attribute usage to) while still enforcing the global usage limit.
const SimulationUserID = "00000000-0000-0000-0000-000000000000"

// Coupon is a discount rule. Zero values for the limits and cap mean
// "unbounded"; a nil ExpiresAt means the coupon never expires.
type Coupon struct {
	ID                      string
	Code                    string
	Type                    Type
	DiscountPercentage      decimal.Decimal
	MaxDiscountInCents      int64
	MinPurchaseValueInCents int64
	IsCumulative            bool
	UsageLimitPerUser       int
	UsageLimitGlobal        int
	ExpiresAt               *time.Time
	IsActive                bool
}

// Store provides coupon lookup and usage counting. Usage is counted by
// scanning past orders' applied-coupon audit trails, so a coupon only
// consumes allowance once an order actually recorded it.
type Store interface {
	// FindByCode looks a coupon up by its code, case-insensitively.
	// Returns a fault.NotFoundError when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// CountUsageByUser counts how many of the user's orders applied the coupon.
	CountUsageByUser(ctx context.Context, couponID, userID string) (int, error)

	// CountUsageGlobal counts how many orders across all users applied the coupon.
	CountUsageGlobal(ctx context.Context, couponID string) (int, error)
}
