// Package cart provides the client-side shopping cart, persisted through
// the key-value store so it survives restarts.
package cart

import (
	"encoding/json"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/infra/kv"
)

const storageKey = "numba_cart"

// Item is a purchasable cart entry: a full release or a single track.
type Item struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	ReleaseID   string  `json:"releaseId,omitempty"`
	TrackNumber int     `json:"trackNumber,omitempty"`
	IsTrack     bool    `json:"isTrack,omitempty"`
}

// Cart is a deduplicated item list. Adding an existing item ID is a
// no-op. Persistence failures are logged; the in-memory view stays
// authoritative for the session.
type Cart struct {
	mu    sync.Mutex
	store kv.Store
	items []Item
}

// New loads the cart from the store.
func New(store kv.Store) *Cart {
	c := &Cart{store: store}
	c.items = c.load()
	return c
}

// Items returns a copy of the cart contents.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// AddItem appends item unless an item with the same ID already exists.
// Returns true when the item was added.
func (c *Cart) AddItem(item Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.items {
		if existing.ID == item.ID {
			return false
		}
	}
	c.items = append(c.items, item)
	c.flushLocked()
	return true
}

// RemoveItem removes the item with the given ID, if present.
func (c *Cart) RemoveItem(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	for _, item := range c.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(c.items) {
		return
	}
	c.items = kept
	c.flushLocked()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.flushLocked()
}

// ItemCount returns the number of items in the cart.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Total returns the summed price of all items.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for _, item := range c.items {
		total += item.Price
	}
	return total
}

func (c *Cart) load() []Item {
	data, ok, err := c.store.Get(storageKey)
	if err != nil {
		zlog.Warn().Msgf("cart: failed to load: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		zlog.Warn().Msgf("cart: corrupt state, starting empty: %v", err)
		return nil
	}
	return items
}

// flushLocked persists the cart. Must be called with c.mu held.
func (c *Cart) flushLocked() {
	items := c.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		zlog.Error().Msgf("cart: failed to encode: %v", err)
		return
	}
	if err := c.store.Set(storageKey, data); err != nil {
		zlog.Error().Msgf("cart: failed to save: %v", err)
	}
}
