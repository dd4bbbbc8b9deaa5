package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/blocohub/checkout/internal/domain/order"
	"github.com/blocohub/checkout/internal/domain/shipping"
)

type checkoutRequest struct {
	PaymentMethod   string         `json:"payment_method"`
	ShippingMethod  string         `json:"shipping_method"`
	ShippingAddress map[string]any `json:"shipping_address"`
	CouponCodes     []string       `json:"coupon_codes"`
}

type paymentRequest struct {
	GatewayID string         `json:"gateway_id"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data"`
}

type orderResponse struct {
	ID                  string                `json:"id"`
	Status              string                `json:"status"`
	SubtotalInCents     int64                 `json:"subtotal_in_cents"`
	DiscountInCents     int64                 `json:"discount_in_cents"`
	ShippingCostInCents int64                 `json:"shipping_cost_in_cents"`
	TotalInCents        int64                 `json:"total_in_cents"`
	PaymentMethod       string                `json:"payment_method"`
	ShippingMethod      string                `json:"shipping_method"`
	ShippingDetails     shipping.Option       `json:"shipping_details"`
	AppliedCoupons      []order.AppliedCoupon `json:"applied_coupons"`
	Items               []orderItemResponse   `json:"items"`
	CreatedAt           time.Time             `json:"created_at"`
}

type orderItemResponse struct {
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name"`
	Quantity         int    `json:"quantity"`
	UnitPriceInCents int64  `json:"unit_price_in_cents"`
	TotalInCents     int64  `json:"total_in_cents"`
}

type simulationResponse struct {
	SubtotalInCents     int64                 `json:"subtotal_in_cents"`
	DiscountInCents     int64                 `json:"discount_in_cents"`
	ShippingCostInCents int64                 `json:"shipping_cost_in_cents"`
	TotalInCents        int64                 `json:"total_in_cents"`
	AppliedCoupons      []order.AppliedCoupon `json:"applied_coupons"`
	ShippingDetails     shipping.Option       `json:"shipping_details"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeUnauthorized(w)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.PaymentMethod == "" || req.ShippingMethod == "" {
		writeBadRequest(w, "payment_method and shipping_method are required")
		return
	}

	o, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:          user,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		CouponCodes:     req.CouponCodes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeUnauthorized(w)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	sim, err := h.orders.Simulate(r.Context(), order.CheckoutRequest{
		UserID:          user,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		CouponCodes:     req.CouponCodes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, simulationResponse{
		SubtotalInCents:     sim.Totals.SubtotalInCents,
		DiscountInCents:     sim.Totals.DiscountInCents,
		ShippingCostInCents: sim.Totals.ShippingCostInCents,
		TotalInCents:        sim.Totals.TotalInCents,
		AppliedCoupons:      sim.Totals.AppliedCoupons,
		ShippingDetails:     sim.ShippingDetails,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	o, err := h.orders.UpdatePaymentInfo(r.Context(), r.PathValue("id"), req.GatewayID, req.Data, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			Quantity:         item.Quantity,
			UnitPriceInCents: item.UnitPriceInCents,
			TotalInCents:     item.TotalInCents,
		}
	}
	return orderResponse{
		ID:                  o.ID,
		Status:              string(o.Status),
		SubtotalInCents:     o.SubtotalInCents,
		DiscountInCents:     o.DiscountInCents,
		ShippingCostInCents: o.ShippingCostInCents,
		TotalInCents:        o.TotalInCents,
		PaymentMethod:       o.PaymentMethod,
		ShippingMethod:      o.ShippingMethod,
		ShippingDetails:     o.ShippingDetails,
		AppliedCoupons:      o.AppliedCoupons,
		Items:               items,
		CreatedAt:           o.CreatedAt,
	}
}
