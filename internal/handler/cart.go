package handler

import (
	"encoding/json"
	"net/http"

	"github.com/blocohub/checkout/internal/domain/cart"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type syncCartRequest struct {
	Items []cart.SyncItem `json:"items"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeUnauthorized(w)
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ProductID == "" || req.Quantity < 1 {
		writeBadRequest(w, "product_id and a quantity of at least 1 are required")
		return
	}

	if err := h.carts.Add(r.Context(), user, req.ProductID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeUnauthorized(w)
		return
	}

	if err := h.carts.Remove(r.Context(), user, r.PathValue("productId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// syncCart merges a client-side cart into the server-side one, typically
// right after login.
func (h *Handler) syncCart(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeUnauthorized(w)
		return
	}

	var req syncCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			writeBadRequest(w, "every item needs a product_id and a quantity of at least 1")
			return
		}
	}

	if err := h.carts.Merge(r.Context(), user, req.Items); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
