package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/app/notify"
	"github.com/numba-music/storefront/internal/domain/catalog"
)

// eventPayload is the wire shape of a playback event on the SSE stream.
type eventPayload struct {
	Sequence uint64         `json:"sequence"`
	Type     string         `json:"type"`
	State    string         `json:"state"`
	TrackID  string         `json:"trackId,omitempty"`
	Track    *catalog.Track `json:"track,omitempty"`
	Blocked  any            `json:"blocked,omitempty"`
}

// sseStream writes notifications as server-sent events.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseStream) Send(n notify.Notification) error {
	payload := eventPayload{
		Sequence: n.SequenceNo,
		Type:     n.Event.Type.String(),
		State:    n.Event.State.String(),
		TrackID:  n.Event.TrackID,
		Track:    n.Event.Track,
	}
	if n.Event.Blocked != nil {
		payload.Blocked = map[string]any{
			"trackId":      n.Event.Blocked.TrackID,
			"title":        n.Event.Blocked.Title,
			"price":        n.Event.Blocked.Price,
			"maxFreePlays": n.Event.Blocked.MaxFreePlays,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return errors.Wrap(err, "failed to write event")
	}
	s.flusher.Flush()
	return nil
}

// PlayerEvents streams playback events over SSE until the client hangs
// up.
func (h *Handler) PlayerEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := &sseStream{w: w, flusher: flusher}
	id := h.Notify.Subscribe(stream)
	defer h.Notify.Unsubscribe(id)

	zlog.Debug().Msgf("sse: subscriber %s connected", id)
	<-r.Context().Done()
	zlog.Debug().Msgf("sse: subscriber %s disconnected", id)
}
