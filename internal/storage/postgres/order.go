package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/blocohub/checkout/internal/domain/order"
	"github.com/blocohub/checkout/internal/fault"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, subtotal_in_cents,
		discount_in_cents, shipping_cost_in_cents, total_in_cents,
		payment_method, shipping_method, shipping_address, shipping_details,
		applied_coupons, payment_gateway, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id,
		product_name, quantity, unit_price_in_cents, total_in_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT id, user_id, subtotal_in_cents, discount_in_cents,
		shipping_cost_in_cents, total_in_cents, payment_method, shipping_method,
		shipping_address, shipping_details, applied_coupons, payment_gateway,
		status, created_at, updated_at
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderItemsSQL = `SELECT id, product_id, product_name, quantity,
		unit_price_in_cents, total_in_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`

	setCanceledSQL = `UPDATE orders SET status = 'canceled', updated_at = now()
		WHERE id = $1`

	updatePaymentSQL = `UPDATE orders SET payment_gateway = $2, status = $3,
		updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderStore)(nil)

// OrderStore implements order.Repository backed by PostgreSQL. The address,
// shipping details, and applied-coupon snapshots are serialized to JSONB at
// this boundary and stay typed everywhere else.
type OrderStore struct {
	db DB
}

// Insert persists the order and its line items.
func (s *OrderStore) Insert(ctx context.Context, o *order.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	details, err := json.Marshal(o.ShippingDetails)
	if err != nil {
		return fmt.Errorf("marshaling shipping details: %w", err)
	}
	coupons, err := json.Marshal(appliedOrEmpty(o.AppliedCoupons))
	if err != nil {
		return fmt.Errorf("marshaling applied coupons: %w", err)
	}
	gateway, err := json.Marshal(o.PaymentGateway)
	if err != nil {
		return fmt.Errorf("marshaling payment gateway: %w", err)
	}

	_, err = s.db.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.SubtotalInCents, o.DiscountInCents,
		o.ShippingCostInCents, o.TotalInCents, o.PaymentMethod,
		o.ShippingMethod, address, details, coupons, gateway,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err := s.db.Exec(ctx, insertOrderItemSQL,
			item.ID, o.ID, item.ProductID, item.ProductName,
			item.Quantity, item.UnitPriceInCents, item.TotalInCents,
		)
		if err != nil {
			return fmt.Errorf("creating item of order %q: %w", o.ID, err)
		}
	}
	return nil
}

// Get loads an order with its items.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.get(ctx, id, getOrderSQL)
}

// GetForUpdate loads an order with its items, locking the order row.
func (s *OrderStore) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return s.get(ctx, id, getOrderForUpdateSQL)
}

func (s *OrderStore) get(ctx context.Context, id, query string) (*order.Order, error) {
	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("loading order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &fault.NotFoundError{Entity: "pedido", Key: id}
		}
		return nil, fmt.Errorf("loading order %q: %w", id, err)
	}

	itemRows, err := s.db.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %q: %w", id, err)
	}

	return &o, nil
}

// SetCanceled marks the order canceled.
func (s *OrderStore) SetCanceled(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, setCanceledSQL, id); err != nil {
		return fmt.Errorf("canceling order %q: %w", id, err)
	}
	return nil
}

// UpdatePayment stores the merged gateway metadata and status.
func (s *OrderStore) UpdatePayment(ctx context.Context, id string, gw order.PaymentGateway, status order.Status) error {
	gateway, err := json.Marshal(gw)
	if err != nil {
		return fmt.Errorf("marshaling payment gateway: %w", err)
	}
	if _, err := s.db.Exec(ctx, updatePaymentSQL, id, gateway, string(status)); err != nil {
		return fmt.Errorf("updating payment of order %q: %w", id, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		status  string
		address []byte
		details []byte
		coupons []byte
		gateway []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.SubtotalInCents, &o.DiscountInCents,
		&o.ShippingCostInCents, &o.TotalInCents, &o.PaymentMethod,
		&o.ShippingMethod, &address, &details, &coupons, &gateway,
		&status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(details, &o.ShippingDetails); err != nil {
		return o, fmt.Errorf("unmarshaling shipping details: %w", err)
	}
	if err := json.Unmarshal(coupons, &o.AppliedCoupons); err != nil {
		return o, fmt.Errorf("unmarshaling applied coupons: %w", err)
	}
	if err := json.Unmarshal(gateway, &o.PaymentGateway); err != nil {
		return o, fmt.Errorf("unmarshaling payment gateway: %w", err)
	}
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID, &item.ProductID, &item.ProductName,
		&item.Quantity, &item.UnitPriceInCents, &item.TotalInCents,
	)
	return item, err
}

// appliedOrEmpty keeps the audit column a JSON array even for orders
// without coupons, so the usage-count queries never see null.
func appliedOrEmpty(coupons []order.AppliedCoupon) []order.AppliedCoupon {
	if coupons == nil {
		return []order.AppliedCoupon{}
	}
	return coupons
}
