package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/numba-music/storefront/internal/app/cart"
	"github.com/numba-music/storefront/internal/app/wishlist"
	"github.com/numba-music/storefront/internal/store"
)

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Total float64     `json:"total"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartResponse{
		Items: h.Cart.Items(),
		Count: h.Cart.ItemCount(),
		Total: h.Cart.Total(),
	})
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var item cart.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if item.ID == "" {
		respondError(w, http.StatusBadRequest, "item id is required")
		return
	}

	added := h.Cart.AddItem(item)
	status := http.StatusCreated
	if !added {
		// Duplicate adds are not an error, just not a new resource.
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]bool{"added": added})
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.Cart.RemoveItem(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.Cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	items := h.Wishlist.Items()
	if items == nil {
		items = []wishlist.Item{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	var item wishlist.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if item.ID == "" {
		respondError(w, http.StatusBadRequest, "item id is required")
		return
	}

	added := h.Wishlist.AddItem(item)
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]bool{"added": added})
}

func (h *Handler) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	h.Wishlist.RemoveItem(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListByUser(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Purchases.ListByUser(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list purchases")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, ids)
}
