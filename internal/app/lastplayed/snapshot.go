// Package lastplayed persists a denormalized snapshot of the most
// recently played track so a restarted client can resume its display
// state without re-fetching the catalog.
package lastplayed

import (
	"encoding/json"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/infra/kv"
)

// TTL is how long a snapshot stays valid. Expiry is enforced lazily on
// read, not swept proactively.
const TTL = 30 * 24 * time.Hour

const snapshotKey = "numba_last_played_track"

// Snapshot is a denormalized copy of the last played track and its
// release context.
type Snapshot struct {
	TrackID       string  `json:"trackId"`
	TrackTitle    string  `json:"trackTitle"`
	TrackNumber   int     `json:"trackNumber"`
	TrackDuration int     `json:"trackDuration"` // seconds
	TrackPrice    float64 `json:"trackPrice"`
	TrackAudioURL string  `json:"trackAudioUrl"`
	ReleaseID     string  `json:"releaseId"`
	ReleaseTitle  string  `json:"releaseTitle"`
	ReleaseImage  string  `json:"releaseImage"`
	Artist        string  `json:"artist"`
	Timestamp     int64   `json:"timestamp"` // unix milliseconds at capture
}

// Store persists the last-played snapshot. All failures are logged and
// degrade to "no snapshot".
type Store struct {
	kv kv.Store
	// now is injectable for expiry tests.
	now func() time.Time
}

// NewStore creates a snapshot store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store, now: time.Now}
}

// Save overwrites the snapshot. The capture timestamp is set here when
// the caller left it zero.
func (s *Store) Save(snap Snapshot) {
	if snap.Timestamp == 0 {
		snap.Timestamp = s.now().UnixMilli()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		zlog.Error().Msgf("lastplayed: failed to encode snapshot: %v", err)
		return
	}
	if err := s.kv.Set(snapshotKey, data); err != nil {
		zlog.Error().Msgf("lastplayed: failed to save snapshot: %v", err)
	}
}

// Load returns the stored snapshot, or nil when there is none, it is
// corrupt, or it is older than TTL. An expired snapshot is cleared as a
// side effect.
func (s *Store) Load() *Snapshot {
	data, ok, err := s.kv.Get(snapshotKey)
	if err != nil {
		zlog.Warn().Msgf("lastplayed: failed to read snapshot: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		zlog.Warn().Msgf("lastplayed: corrupt snapshot, discarding: %v", err)
		s.Clear()
		return nil
	}

	cutoff := s.now().Add(-TTL).UnixMilli()
	if snap.Timestamp < cutoff {
		s.Clear()
		return nil
	}

	return &snap
}

// Clear removes the snapshot.
func (s *Store) Clear() {
	if err := s.kv.Delete(snapshotKey); err != nil {
		zlog.Warn().Msgf("lastplayed: failed to clear snapshot: %v", err)
	}
}

// HasPlayedBefore reports whether a valid snapshot exists.
func (s *Store) HasPlayedBefore() bool {
	return s.Load() != nil
}
