package rest

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/numba-music/storefront/internal/app/player"
	"github.com/numba-music/storefront/internal/domain/catalog"
)

// statusResponse is the full transport view of the playback session.
type statusResponse struct {
	State       string         `json:"state"`
	Track       *catalog.Track `json:"track,omitempty"`
	TrackID     string         `json:"trackId,omitempty"`
	ReleaseID   string         `json:"releaseId,omitempty"`
	ReleaseName string         `json:"releaseTitle,omitempty"`
	Artist      string         `json:"artist,omitempty"`
	Image       string         `json:"image,omitempty"`
	Index       int            `json:"index"`
	Position    float64        `json:"position"` // seconds
	Duration    float64        `json:"duration"` // seconds
	Volume      int            `json:"volume"`
	Tracks      int            `json:"tracks"`
}

func (h *Handler) PlayerStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:    h.Player.State().String(),
		Index:    h.Player.CurrentIndex(),
		Position: h.Player.Position().Seconds(),
		Duration: h.Player.Duration().Seconds(),
		Volume:   h.Player.Volume(),
		Tracks:   len(h.Player.Playlist()),
	}

	if track, ok := h.Player.CurrentTrack(); ok {
		t := track
		resp.Track = &t
		release := h.Player.CurrentRelease()
		resp.ReleaseID = release.ID
		resp.ReleaseName = release.Title
		resp.Artist = release.Artist
		resp.Image = release.Image
		if release.ID != "" {
			resp.TrackID = catalog.TrackID(release.ID, track.Number)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

type playRequest struct {
	ReleaseID   string `json:"releaseId"`
	TrackNumber int    `json:"trackNumber"` // 0 means the first track
}

func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decodeBody(w, r, &req) {
		return
	}

	release, ok := h.release(w, req.ReleaseID)
	if !ok {
		return
	}

	startIndex := 0
	if req.TrackNumber > 0 {
		startIndex = -1
		for i, t := range release.Tracks {
			if t.Number == req.TrackNumber {
				startIndex = i
				break
			}
		}
		if startIndex < 0 {
			respondError(w, http.StatusNotFound, "track not found")
			return
		}
	}

	err := h.Player.PlayRelease(player.ReleaseRef{
		ID:     release.ID,
		Title:  release.Title,
		Image:  release.Image,
		Artist: release.Artist,
	}, release.Tracks, startIndex)
	if err != nil {
		h.respondPlayError(w, err)
		return
	}

	h.PlayerStatus(w, r)
}

type playSampleRequest struct {
	PackID      string `json:"packId"`
	SampleIndex int    `json:"sampleIndex"`
}

func (h *Handler) PlaySample(w http.ResponseWriter, r *http.Request) {
	var req playSampleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pack, err := h.Catalog.GetSamplePack(req.PackID)
	if err != nil {
		respondError(w, http.StatusNotFound, "sample pack not found")
		return
	}
	if req.SampleIndex < 0 || req.SampleIndex >= len(pack.Samples) {
		respondError(w, http.StatusBadRequest, "sample index out of range")
		return
	}

	sample := pack.Samples[req.SampleIndex]
	h.Player.PlaySample(sample.Name, sample.AudioURL, pack.Title, pack.Image)

	h.PlayerStatus(w, r)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	if err := h.Player.TogglePlayPause(); err != nil {
		h.respondPlayError(w, err)
		return
	}
	h.PlayerStatus(w, r)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	if err := h.Player.SkipToNext(); err != nil {
		h.respondPlayError(w, err)
		return
	}
	h.PlayerStatus(w, r)
}

func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	if err := h.Player.SkipToPrevious(); err != nil {
		h.respondPlayError(w, err)
		return
	}
	h.PlayerStatus(w, r)
}

type seekRequest struct {
	Position float64 `json:"position"` // seconds
}

func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Position < 0 {
		respondError(w, http.StatusBadRequest, "position must not be negative")
		return
	}

	h.Player.SeekTo(time.Duration(req.Position * float64(time.Second)))
	h.PlayerStatus(w, r)
}

type volumeRequest struct {
	Level int `json:"level"`
}

func (h *Handler) Volume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.Player.SetVolume(req.Level)
	h.PlayerStatus(w, r)
}

// Restore primes the player from the last-played snapshot. Responds 204
// when there is no valid snapshot.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	snap := h.Snapshots.Load()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Player.Restore(snap)
	h.PlayerStatus(w, r)
}

// respondPlayError maps controller errors onto HTTP statuses. A gate
// block is 402: the client is expected to offer the purchase.
func (h *Handler) respondPlayError(w http.ResponseWriter, err error) {
	var blocked *player.BlockedError
	if errors.As(err, &blocked) {
		respondJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":        blocked.Error(),
			"trackId":      blocked.TrackID,
			"title":        blocked.Title,
			"price":        blocked.Price,
			"maxFreePlays": blocked.MaxFreePlays,
		})
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}
