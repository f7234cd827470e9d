// Package player provides the playback session controller: it sequences
// tracks through a single audio output, enforces the free-play gate
// before starting a track, and persists last-played state for session
// resumption.
package player

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No track loaded
	StateLoading              // Source set, waiting for the output to become ready
	StatePlaying              // Audio actively outputting
	StatePaused               // Track loaded, position held, not outputting
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
