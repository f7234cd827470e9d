// Package notify broadcasts playback events to API subscribers (for
// example the storefront's server-sent-events stream).
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/numba-music/storefront/internal/app/player"
)

// Notification is a playback event stamped with a sequence number so
// subscribers can detect gaps.
type Notification struct {
	SequenceNo uint64
	Event      player.Event
}

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(Notification) error
}

// subscription represents a subscriber's registration.
type subscription struct {
	id     string
	stream Stream
}

// Manager fans playback events out to subscribers.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceMu sync.Mutex
	sequenceNo uint64

	sendTimeout time.Duration
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Run consumes the controller's event channel until it is closed,
// broadcasting every event. Intended to run in its own goroutine.
func (m *Manager) Run(events <-chan player.Event) {
	for e := range events {
		m.Broadcast(e)
	}
}

// Subscribe registers a stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, stream: stream}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Broadcast sends an event to all subscribers. Each send runs in its own
// goroutine with a timeout so one slow subscriber cannot stall the rest.
func (m *Manager) Broadcast(e player.Event) {
	m.sequenceMu.Lock()
	m.sequenceNo++
	n := Notification{SequenceNo: m.sequenceNo, Event: e}
	m.sequenceMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case <-done:
				// Send errors are ignored; a dead subscriber is cleaned
				// up when its handler returns and unsubscribes.
			case <-time.After(m.sendTimeout):
			}
		}(sub)
	}
	wg.Wait()
}

// Close drops all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
