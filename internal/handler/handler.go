// Package handler exposes the checkout core as thin REST endpoints.
//
// Authentication happens upstream; the gateway forwards the caller's
// identity in the X-User-ID header.
package handler

import (
	"net/http"

	"github.com/blocohub/checkout/internal/domain/cart"
	"github.com/blocohub/checkout/internal/domain/order"
)

// Handler holds the HTTP endpoints of the checkout API.
type Handler struct {
	orders *order.Service
	carts  cart.Store
}

// New constructs a Handler.
func New(orders *order.Service, carts cart.Store) *Handler {
	return &Handler{orders: orders, carts: carts}
}

// Register mounts every route on the given mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.checkout)
	mux.HandleFunc("POST /api/checkout/simulate", h.simulate)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.updatePayment)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{productId}", h.removeCartItem)
	mux.HandleFunc("POST /api/cart/sync", h.syncCart)
}

// userID extracts the authenticated user's identity from the request.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
