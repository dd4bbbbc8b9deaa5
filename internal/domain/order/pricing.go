package order

import (
	"github.com/shopspring/decimal"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Totals is the outcome of pricing a cart: the financial snapshot an order
// is created with, plus the audit list of the coupons that actually won.
type Totals struct {
	SubtotalInCents     int64
	ShippingCostInCents int64
	DiscountInCents     int64
	TotalInCents        int64
	AppliedCoupons      []AppliedCoupon
}

// SubtotalInCents sums the line totals of the given checkout items.
func SubtotalInCents(items []cart.CheckoutItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.TotalInCents()
	}
	return sum
}

// CalculateTotals combines the subtotal, the recalculated shipping cost,
// and the validated coupons into a final discount and total.
//
// Coupons are partitioned into cumulative and non-cumulative sets. The
// cumulative set competes as a whole against the single best non-cumulative
// coupon; the side with the larger combined discount wins, with ties going
// to the cumulative set. The two sides never mix. Only after that decision
// are the global caps applied to the winning set: the shipping portion of
// the discount can never exceed the shipping cost, and the product portion
// can never push the product total below the aggregate minimum-price floor.
func CalculateTotals(items []cart.CheckoutItem, shippingCostInCents int64, coupons []coupon.Coupon) Totals {
	var subtotal, minimumFloor int64
	for _, item := range items {
		subtotal += item.TotalInCents()
		minimumFloor += item.MinimumPriceInCents * int64(item.Quantity)
	}

	var (
		cumulative      []AppliedCoupon
		cumulativeTotal int64
		bestSingle      *AppliedCoupon
	)
	for _, c := range coupons {
		applied := AppliedCoupon{
			ID:              c.ID,
			Code:            c.Code,
			DiscountInCents: couponDiscountInCents(c, subtotal, shippingCostInCents),
			Type:            c.Type,
		}
		if c.IsCumulative {
			cumulative = append(cumulative, applied)
			cumulativeTotal += applied.DiscountInCents
			continue
		}
		// Ties keep the first non-cumulative coupon found.
		if bestSingle == nil || applied.DiscountInCents > bestSingle.DiscountInCents {
			bestSingle = &applied
		}
	}

	// Equality favors the cumulative set.
	winners := cumulative
	if bestSingle != nil && bestSingle.DiscountInCents > cumulativeTotal {
		winners = []AppliedCoupon{*bestSingle}
	}

	var shippingDiscount, productDiscount int64
	for _, w := range winners {
		if w.Type == coupon.TypeShipping {
			shippingDiscount += w.DiscountInCents
		} else {
			productDiscount += w.DiscountInCents
		}
	}
	shippingDiscount = min(shippingDiscount, shippingCostInCents)
	productDiscount = min(productDiscount, max(subtotal-minimumFloor, 0))

	discount := shippingDiscount + productDiscount

	return Totals{
		SubtotalInCents:     subtotal,
		ShippingCostInCents: shippingCostInCents,
		DiscountInCents:     discount,
		TotalInCents:        subtotal + shippingCostInCents - discount,
		AppliedCoupons:      winners,
	}
}

// couponDiscountInCents computes a single coupon's discount against its
// own base, capped by the coupon's max discount when one is set.
func couponDiscountInCents(c coupon.Coupon, subtotalInCents, shippingCostInCents int64) int64 {
	base := subtotalInCents
	if c.Type == coupon.TypeShipping {
		base = shippingCostInCents
	}

	raw := decimal.NewFromInt(base).
		Mul(c.DiscountPercentage).
		Div(hundred).
		Round(0).
		IntPart()

	if c.MaxDiscountInCents > 0 && raw > c.MaxDiscountInCents {
		return c.MaxDiscountInCents
	}
	return raw
}
