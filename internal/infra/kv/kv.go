// Package kv provides a small persistent key-value store abstraction.
// The storefront's client-side state (play counts, purchased tracks,
// cart, wishlist, last-played snapshot) lives behind this interface so
// the application logic can be tested against an in-memory store and
// deployed against a file-backed one.
package kv

// Store is a keyed byte store. Implementations are last-writer-wins on
// key collisions and make no atomicity guarantees across keys.
type Store interface {
	// Get returns the value for key. The second return value is false
	// when the key is absent.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}
