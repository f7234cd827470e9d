package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// gateStatusResponse describes where a track stands with the free-play
// gate.
type gateStatusResponse struct {
	TrackID        string `json:"trackId"`
	PlayCount      int    `json:"playCount"`
	RemainingPlays int    `json:"remainingPlays"`
	MaxFreePlays   int    `json:"maxFreePlays"`
	Purchased      bool   `json:"purchased"`
	Blocked        bool   `json:"blocked"`
}

func (h *Handler) GateStatus(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	purchased := h.Gate.IsTrackPurchased(trackID)
	resp := gateStatusResponse{
		TrackID:        trackID,
		PlayCount:      h.Gate.GetPlayCount(trackID),
		RemainingPlays: h.Gate.GetRemainingPlays(trackID),
		MaxFreePlays:   h.Gate.MaxFreePlays(),
		Purchased:      purchased,
		Blocked:        !purchased && !h.Gate.HasFreePlaysRemaining(trackID),
	}
	respondJSON(w, http.StatusOK, resp)
}
