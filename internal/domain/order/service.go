package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/domain/coupon"
	"github.com/blocohub/checkout/internal/domain/shipping"
	"github.com/blocohub/checkout/internal/fault"
)

// CheckoutRequest is the input for creating (or simulating) an order from
// the user's cart. Prices and shipping costs are never taken from the
// client; only the address, method choices, and coupon codes are.
type CheckoutRequest struct {
	UserID          string
	PaymentMethod   string
	ShippingAddress map[string]any
	ShippingMethod  string
	CouponCodes     []string
}

// Simulation is the outcome of a what-would-this-cost preview.
type Simulation struct {
	Totals          Totals
	ShippingDetails shipping.Option
}

// Service orchestrates checkout and post-creation order lifecycle.
type Service struct {
	uow    UnitOfWork
	rates  shipping.Oracle
	now    func() time.Time
	nextID func() string
}

// NewService creates an order Service over the given unit of work and
// shipping rate oracle.
func NewService(uow UnitOfWork, rates shipping.Oracle) *Service {
	return &Service{
		uow:    uow,
		rates:  rates,
		now:    time.Now,
		nextID: func() string { return uuid.New().String() },
	}
}

// Checkout turns the user's cart into a persisted order, all-or-nothing:
// validate the cart, recalculate shipping, validate coupons, price,
// reserve stock, persist the order and its items, clear the cart. Any
// failure at any step rolls the entire transaction back, leaving stock
// untouched and the cart intact for retry.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var created *Order
	err := s.uow.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		o, err := s.assemble(ctx, st, req, req.UserID)
		if err != nil {
			return err
		}

		for _, item := range o.Items {
			if err := st.Products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := st.Orders.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if err := st.Carts.Clear(ctx, req.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Simulate runs the exact pricing path of Checkout without mutating
// anything: no stock reservation, no order, no cart clearing, and no
// per-user coupon usage attribution (the simulation identity still
// enforces global usage limits).
func (s *Service) Simulate(ctx context.Context, req CheckoutRequest) (*Simulation, error) {
	o, err := s.assemble(ctx, s.uow.View(), req, coupon.SimulationUserID)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		Totals: Totals{
			SubtotalInCents:     o.SubtotalInCents,
			ShippingCostInCents: o.ShippingCostInCents,
			DiscountInCents:     o.DiscountInCents,
			TotalInCents:        o.TotalInCents,
			AppliedCoupons:      o.AppliedCoupons,
		},
		ShippingDetails: o.ShippingDetails,
	}, nil
}

// assemble runs the read-only part of checkout: cart validation, shipping
// recalculation, coupon validation, and pricing. couponUserID is the
// identity coupon usage limits are checked against; simulations pass the
// sentinel identity.
func (s *Service) assemble(ctx context.Context, st Stores, req CheckoutRequest, couponUserID string) (*Order, error) {
	rows, err := st.Carts.ItemsWithProducts(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	items, err := cart.ValidateCheckoutable(rows)
	if err != nil {
		return nil, err
	}

	quote, err := shipping.NewRecalculator(s.rates).Recalculate(ctx, items, req.ShippingAddress, req.ShippingMethod)
	if err != nil {
		return nil, err
	}

	subtotal := SubtotalInCents(items)
	coupons, err := coupon.NewValidator(st.Coupons).ValidateMultiple(ctx, req.CouponCodes, couponUserID, subtotal)
	if err != nil {
		return nil, err
	}

	totals := CalculateTotals(items, quote.CostInCents, coupons)

	now := s.now()
	o := &Order{
		ID:                  s.nextID(),
		UserID:              req.UserID,
		SubtotalInCents:     totals.SubtotalInCents,
		DiscountInCents:     totals.DiscountInCents,
		ShippingCostInCents: totals.ShippingCostInCents,
		TotalInCents:        totals.TotalInCents,
		PaymentMethod:       req.PaymentMethod,
		ShippingMethod:      req.ShippingMethod,
		ShippingAddress:     req.ShippingAddress,
		ShippingDetails:     quote.Details,
		AppliedCoupons:      totals.AppliedCoupons,
		Status:              StatusPending,
		Items:               make([]Item, len(items)),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for i, item := range items {
		o.Items[i] = Item{
			ID:               s.nextID(),
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			Quantity:         item.Quantity,
			UnitPriceInCents: item.UnitPriceInCents,
			TotalInCents:     item.TotalInCents(),
		}
	}
	return o, nil
}

// Get loads a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.uow.View().Orders.Get(ctx, id)
}

// Cancel cancels an order and restores its items' stock. Canceling an
// already-canceled order is a no-op returning the current state; canceling
// a shipped or delivered order fails with a service error. The order row
// is locked for the duration of the transaction.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	var result *Order
	err := s.uow.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		o, err := st.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if o.Status == StatusCanceled {
			result = o
			return nil
		}
		if !o.Status.Cancelable() {
			return fault.Servicef("pedido %s não pode ser cancelado no estado %q", o.ID, o.Status)
		}

		for _, item := range o.Items {
			if err := st.Products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := st.Orders.SetCanceled(ctx, o.ID); err != nil {
			return errors.Wrap(err, "set canceled")
		}

		o.Status = StatusCanceled
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePaymentInfo merges payment gateway metadata into the order. A
// gateway status of "approved" advances a pending order to paid; other
// statuses only record metadata. Cancellation is never driven from this
// path because it owns stock restoration.
func (s *Service) UpdatePaymentInfo(ctx context.Context, id, gatewayID string, gatewayData map[string]any, gatewayStatus string) (*Order, error) {
	var result *Order
	err := s.uow.WithinTx(ctx, func(ctx context.Context, st Stores) error {
		o, err := st.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if gatewayID != "" {
			o.PaymentGateway.GatewayID = gatewayID
		}
		if gatewayStatus != "" {
			o.PaymentGateway.Status = gatewayStatus
		}
		if len(gatewayData) > 0 {
			if o.PaymentGateway.Data == nil {
				o.PaymentGateway.Data = make(map[string]any, len(gatewayData))
			}
			for k, v := range gatewayData {
				o.PaymentGateway.Data[k] = v
			}
		}

		if gatewayStatus == "approved" && o.Status == StatusPending {
			o.Status = StatusPaid
		}

		if err := st.Orders.UpdatePayment(ctx, o.ID, o.PaymentGateway, o.Status); err != nil {
			return errors.Wrap(err, "update payment")
		}

		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
