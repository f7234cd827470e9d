// Package rest exposes the storefront over HTTP: catalog browsing, the
// play-gate, player transport control, cart, wishlist, order history and
// the checkout webhook.
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/app/cart"
	"github.com/numba-music/storefront/internal/app/fulfillment"
	"github.com/numba-music/storefront/internal/app/lastplayed"
	"github.com/numba-music/storefront/internal/app/notify"
	"github.com/numba-music/storefront/internal/app/player"
	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/app/wishlist"
	"github.com/numba-music/storefront/internal/domain/catalog"
	"github.com/numba-music/storefront/internal/store"
)

// Handler bundles the application services the API serves.
type Handler struct {
	Catalog     catalog.Provider
	Player      *player.Controller
	Gate        *playgate.Ledger
	Snapshots   *lastplayed.Store
	Cart        *cart.Cart
	Wishlist    *wishlist.Wishlist
	Orders      *store.OrdersRepo
	Purchases   *store.PurchasesRepo
	Fulfillment *fulfillment.Processor
	Notify      *notify.Manager
}

// Router builds the chi router with all routes registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/releases", h.ListReleases)
		r.Get("/releases/{id}", h.GetRelease)
		r.Get("/artists", h.ListArtists)
		r.Get("/artists/{id}", h.GetArtist)
		r.Get("/sample-packs", h.ListSamplePacks)
		r.Get("/sample-packs/{id}", h.GetSamplePack)
		r.Get("/search", h.Search)

		r.Get("/tracks/{trackID}/gate", h.GateStatus)

		r.Route("/player", func(r chi.Router) {
			r.Get("/status", h.PlayerStatus)
			r.Get("/events", h.PlayerEvents)
			r.Post("/play", h.Play)
			r.Post("/sample", h.PlaySample)
			r.Post("/toggle", h.Toggle)
			r.Post("/next", h.Next)
			r.Post("/previous", h.Previous)
			r.Post("/seek", h.Seek)
			r.Post("/volume", h.Volume)
			r.Post("/restore", h.Restore)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.Delete("/items/{id}", h.RemoveCartItem)
			r.Delete("/", h.ClearCart)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", h.GetWishlist)
			r.Post("/items", h.AddWishlistItem)
			r.Delete("/items/{id}", h.RemoveWishlistItem)
		})

		r.Get("/users/{userID}/orders", h.ListOrders)
		r.Get("/users/{userID}/purchases", h.ListPurchases)
	})

	r.Post("/webhooks/checkout", h.CheckoutWebhook)

	return r
}

// requestLogger logs each request through the global zerolog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		zlog.Debug().Msgf("http: %s %s -> %d (%s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Warn().Msgf("http: failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
