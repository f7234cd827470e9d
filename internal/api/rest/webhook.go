package rest

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/app/fulfillment"
)

// CheckoutWebhook receives checkout-provider events. Unknown event types
// are acknowledged so the provider stops redelivering them; processing
// failures return 500 to trigger a retry.
func (h *Handler) CheckoutWebhook(w http.ResponseWriter, r *http.Request) {
	var evt fulfillment.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		respondError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if err := h.Fulfillment.Process(evt); err != nil {
		if errors.Is(err, fulfillment.ErrUnknownEvent) {
			zlog.Info().Msgf("webhook: acknowledged unhandled event %s", evt.Type)
			respondJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		zlog.Error().Msgf("webhook: processing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
