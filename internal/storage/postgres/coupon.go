package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/blocohub/checkout/internal/domain/coupon"
	"github.com/blocohub/checkout/internal/fault"
)

const (
	getCouponByCodeSQL = `SELECT id, code, type, discount_percentage,
		COALESCE(max_discount_in_cents, 0), min_purchase_value_in_cents,
		is_cumulative, usage_limit_per_user, usage_limit_global,
		expiration_date, is_active
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	// Usage is counted from the applied-coupon audit trail on past orders.
	countUsageByUserSQL = `SELECT count(*) FROM orders o
		CROSS JOIN LATERAL jsonb_array_elements(o.applied_coupons) AS ac
		WHERE o.user_id = $2 AND ac->>'id' = $1`

	countUsageGlobalSQL = `SELECT count(*) FROM orders o
		CROSS JOIN LATERAL jsonb_array_elements(o.applied_coupons) AS ac
		WHERE ac->>'id' = $1`
)

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore implements coupon.Store backed by PostgreSQL.
type CouponStore struct {
	db DB
}

// FindByCode looks up a coupon by its code, case-insensitively.
func (s *CouponStore) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := s.db.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &fault.NotFoundError{Entity: "cupom", Key: code}
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// CountUsageByUser counts the user's past orders that applied the coupon.
func (s *CouponStore) CountUsageByUser(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, countUsageByUserSQL, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting usage of coupon %q by user %q: %w", couponID, userID, err)
	}
	return count, nil
}

// CountUsageGlobal counts all past orders that applied the coupon.
func (s *CouponStore) CountUsageGlobal(ctx context.Context, couponID string) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, countUsageGlobalSQL, couponID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting global usage of coupon %q: %w", couponID, err)
	}
	return count, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		ctype      string
		percentage decimal.Decimal
		expiresAt  *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &ctype, &percentage,
		&c.MaxDiscountInCents, &c.MinPurchaseValueInCents,
		&c.IsCumulative, &c.UsageLimitPerUser, &c.UsageLimitGlobal,
		&expiresAt, &c.IsActive,
	)
	c.Type = coupon.Type(ctype)
	c.DiscountPercentage = percentage
	c.ExpiresAt = expiresAt
	return c, err
}
