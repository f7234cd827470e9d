package player

import "github.com/numba-music/storefront/internal/domain/catalog"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track started playing
	EventTrackEnded                    // Track finished playing
	EventTrackSkipped                  // Track was skipped over
	EventStateChanged                  // Playback state changed (pause/resume/error fallback)
	EventPlayBlocked                   // Play attempt blocked by the free-play gate
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventPlayBlocked:
		return "play_blocked"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	TrackID string         // Canonical track id (empty for ungated previews)
	Track   *catalog.Track // Affected track (nil for some events)
	State   State          // Controller state after the event
	Blocked *BlockedError  // Set for EventPlayBlocked
}
