// Package wishlist provides the client-side wishlist, persisted through
// the key-value store.
package wishlist

import (
	"encoding/json"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/infra/kv"
)

const storageKey = "numba_wishlist"

// Item is a wishlisted release or track.
type Item struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Type      string  `json:"type"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	ReleaseID string  `json:"releaseId,omitempty"`
}

// Wishlist is a deduplicated item list persisted write-through.
type Wishlist struct {
	mu    sync.Mutex
	store kv.Store
	items []Item
}

// New loads the wishlist from the store.
func New(store kv.Store) *Wishlist {
	w := &Wishlist{store: store}
	w.items = w.load()
	return w
}

// Items returns a copy of the wishlist contents.
func (w *Wishlist) Items() []Item {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Item, len(w.items))
	copy(out, w.items)
	return out
}

// AddItem appends item unless already present. Returns true when added.
func (w *Wishlist) AddItem(item Item) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, existing := range w.items {
		if existing.ID == item.ID {
			return false
		}
	}
	w.items = append(w.items, item)
	w.flushLocked()
	return true
}

// RemoveItem removes the item with the given ID, if present.
func (w *Wishlist) RemoveItem(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.items[:0]
	for _, item := range w.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(w.items) {
		return
	}
	w.items = kept
	w.flushLocked()
}

// Contains reports whether the item with the given ID is wishlisted.
func (w *Wishlist) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, item := range w.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Clear empties the wishlist.
func (w *Wishlist) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = nil
	w.flushLocked()
}

func (w *Wishlist) load() []Item {
	data, ok, err := w.store.Get(storageKey)
	if err != nil {
		zlog.Warn().Msgf("wishlist: failed to load: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		zlog.Warn().Msgf("wishlist: corrupt state, starting empty: %v", err)
		return nil
	}
	return items
}

// flushLocked persists the wishlist. Must be called with w.mu held.
func (w *Wishlist) flushLocked() {
	items := w.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		zlog.Error().Msgf("wishlist: failed to encode: %v", err)
		return
	}
	if err := w.store.Set(storageKey, data); err != nil {
		zlog.Error().Msgf("wishlist: failed to save: %v", err)
	}
}
