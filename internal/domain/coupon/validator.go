package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/blocohub/checkout/internal/fault"
)

// Validator checks whether coupon codes are currently usable by a given
// user for a given purchase value.
type Validator struct {
	store Store
	now   func() time.Time
}

// NewValidator creates a Validator backed by the given Store.
func NewValidator(store Store) *Validator {
	return &Validator{store: store, now: time.Now}
}

// ValidateMultiple resolves a set of coupon codes into the coupons that are
// usable right now. Blank and duplicate codes are silently dropped; every
// remaining code must pass all checks or the whole call fails with that
// code's error.
//
// Eligibility (min purchase value) is always checked against the purchase
// value, even for shipping-type coupons whose discount is later computed
// against shipping cost: eligibility is tied to cart size, the discount to
// its own base.
func (v *Validator) ValidateMultiple(ctx context.Context, codes []string, userID string, purchaseValueInCents int64) ([]Coupon, error) {
	seen := make(map[string]struct{}, len(codes))
	valid := make([]Coupon, 0, len(codes))

	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		c, err := v.validate(ctx, code, userID, purchaseValueInCents)
		if err != nil {
			return nil, err
		}
		valid = append(valid, *c)
	}

	return valid, nil
}

func (v *Validator) validate(ctx context.Context, code, userID string, purchaseValueInCents int64) (*Coupon, error) {
	c, err := v.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !c.IsActive {
		return nil, fault.Validationf("cupom %q não está mais ativo", c.Code)
	}
	if c.ExpiresAt != nil && v.now().After(*c.ExpiresAt) {
		return nil, fault.Validationf("cupom %q expirado", c.Code)
	}
	if purchaseValueInCents < c.MinPurchaseValueInCents {
		return nil, fault.Validationf("cupom %q exige compra mínima de %d centavos", c.Code, c.MinPurchaseValueInCents)
	}

	if c.UsageLimitPerUser > 0 && userID != SimulationUserID {
		used, err := v.store.CountUsageByUser(ctx, c.ID, userID)
		if err != nil {
			return nil, errors.Wrapf(err, "count usage of coupon %q by user", c.Code)
		}
		if used >= c.UsageLimitPerUser {
			return nil, fault.Validationf("cupom %q já foi utilizado o número máximo de vezes", c.Code)
		}
	}

	if c.UsageLimitGlobal > 0 {
		used, err := v.store.CountUsageGlobal(ctx, c.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "count global usage of coupon %q", c.Code)
		}
		if used >= c.UsageLimitGlobal {
			return nil, fault.Validationf("cupom %q esgotado", c.Code)
		}
	}

	return c, nil
}
