// Package playgate provides the play-gate ledger: per-track free-play
// counting and local purchase records backing the free-play-then-purchase
// gate. The ledger is a UX convenience, not a security boundary; the
// authoritative purchase truth lives in the order store.
package playgate

import (
	"encoding/json"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/infra/kv"
)

// DefaultMaxFreePlays is the number of free plays granted per unpurchased
// track when no limit is configured.
const DefaultMaxFreePlays = 5

// Storage keys. Kept stable so existing client state survives upgrades.
const (
	playCountsKey      = "numba_play_counts"
	purchasedTracksKey = "numba_purchased_tracks"
)

// Config holds ledger configuration.
type Config struct {
	MaxFreePlays int // free plays per unpurchased track; 0 means DefaultMaxFreePlays
}

// Ledger records how many free plays each unpurchased track has consumed
// and which tracks have been purchased. All persistence failures degrade
// to "no record" behavior: reads report zero/unpurchased and are never
// surfaced to callers as errors.
type Ledger struct {
	mu           sync.Mutex
	store        kv.Store
	maxFreePlays int
}

// NewLedger creates a ledger backed by the given store.
func NewLedger(store kv.Store, cfg Config) *Ledger {
	max := cfg.MaxFreePlays
	if max <= 0 {
		max = DefaultMaxFreePlays
	}
	return &Ledger{store: store, maxFreePlays: max}
}

// MaxFreePlays returns the configured free-play limit.
func (l *Ledger) MaxFreePlays() int {
	return l.maxFreePlays
}

// GetPlayCount returns the stored play count for trackID, or 0 when the
// track has no record or the record cannot be read.
func (l *Ledger) GetPlayCount(trackID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadCountsLocked()[trackID]
}

// IncrementPlayCount adds one granted play to trackID and returns the new
// count. On persistence failure the increment is lost and 0 is returned.
func (l *Ledger) IncrementPlayCount(trackID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := l.loadCountsLocked()
	counts[trackID]++
	if !l.saveCountsLocked(counts) {
		return 0
	}
	return counts[trackID]
}

// GetRemainingPlays returns how many free plays trackID has left.
func (l *Ledger) GetRemainingPlays(trackID string) int {
	remaining := l.maxFreePlays - l.GetPlayCount(trackID)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasFreePlaysRemaining reports whether trackID can still be played for
// free.
func (l *Ledger) HasFreePlaysRemaining(trackID string) bool {
	return l.GetRemainingPlays(trackID) > 0
}

// ResetPlayCount removes trackID's play record entirely.
func (l *Ledger) ResetPlayCount(trackID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetPlayCountLocked(trackID)
}

func (l *Ledger) resetPlayCountLocked(trackID string) {
	counts := l.loadCountsLocked()
	if _, ok := counts[trackID]; !ok {
		return
	}
	delete(counts, trackID)
	l.saveCountsLocked(counts)
}

// MarkTrackPurchased resets trackID's play count and adds it to the
// purchased set. Marking an already-purchased track is a no-op beyond the
// redundant reset.
func (l *Ledger) MarkTrackPurchased(trackID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetPlayCountLocked(trackID)

	purchased := l.loadPurchasedLocked()
	if _, ok := purchased[trackID]; ok {
		return
	}
	purchased[trackID] = struct{}{}
	l.savePurchasedLocked(purchased)
}

// RevokeTrackPurchase removes trackID from the purchased set, dropping it
// back to the free-play gate. Used when an order is refunded.
func (l *Ledger) RevokeTrackPurchase(trackID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	purchased := l.loadPurchasedLocked()
	if _, ok := purchased[trackID]; !ok {
		return
	}
	delete(purchased, trackID)
	l.savePurchasedLocked(purchased)
}

// IsTrackPurchased reports whether trackID is in the purchased set.
func (l *Ledger) IsTrackPurchased(trackID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.loadPurchasedLocked()[trackID]
	return ok
}

// loadCountsLocked reads the play-count map. Malformed or unreadable
// data is treated as an empty map. Must be called with l.mu held.
func (l *Ledger) loadCountsLocked() map[string]int {
	counts := make(map[string]int)

	data, ok, err := l.store.Get(playCountsKey)
	if err != nil {
		zlog.Warn().Msgf("playgate: failed to read play counts: %v", err)
		return counts
	}
	if !ok {
		return counts
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		zlog.Warn().Msgf("playgate: corrupt play counts, treating as empty: %v", err)
		return make(map[string]int)
	}
	return counts
}

// saveCountsLocked persists the play-count map, reporting success.
func (l *Ledger) saveCountsLocked(counts map[string]int) bool {
	data, err := json.Marshal(counts)
	if err != nil {
		zlog.Error().Msgf("playgate: failed to encode play counts: %v", err)
		return false
	}
	if err := l.store.Set(playCountsKey, data); err != nil {
		zlog.Error().Msgf("playgate: failed to write play counts: %v", err)
		return false
	}
	return true
}

// loadPurchasedLocked reads the purchased-track set.
func (l *Ledger) loadPurchasedLocked() map[string]struct{} {
	set := make(map[string]struct{})

	data, ok, err := l.store.Get(purchasedTracksKey)
	if err != nil {
		zlog.Warn().Msgf("playgate: failed to read purchased tracks: %v", err)
		return set
	}
	if !ok {
		return set
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		zlog.Warn().Msgf("playgate: corrupt purchased tracks, treating as empty: %v", err)
		return set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// savePurchasedLocked persists the purchased-track set as a sorted-free
// JSON array (order is not meaningful).
func (l *Ledger) savePurchasedLocked(set map[string]struct{}) {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	data, err := json.Marshal(ids)
	if err != nil {
		zlog.Error().Msgf("playgate: failed to encode purchased tracks: %v", err)
		return
	}
	if err := l.store.Set(purchasedTracksKey, data); err != nil {
		zlog.Error().Msgf("playgate: failed to write purchased tracks: %v", err)
	}
}
