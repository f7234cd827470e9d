package player

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrLoadInterrupted is reported by an Output when a pending load or play
// was superseded by a newer request. The controller treats it as benign
// concurrent-request noise and swallows it.
var ErrLoadInterrupted = errors.New("load interrupted by a newer request")

// Callbacks are the output notifications the controller subscribes to.
// Outputs may invoke them synchronously from within Load/Play or from
// their own goroutines; the controller never holds its lock across
// output calls.
type Callbacks struct {
	OnReady    func()                       // enough data buffered, playback has started
	OnPosition func(position time.Duration) // playback position changed
	OnMetadata func(duration time.Duration) // total duration became known
	OnEnded    func()                       // current source played to the end
	OnError    func(err error)              // asynchronous output failure
}

// Output abstracts the audio output device. It is a single process-wide
// resource exclusively owned by the controller: loading a new source
// replaces whatever was previously loaded.
type Output interface {
	// Subscribe registers the callback set. Called once at controller
	// construction; later calls replace the previous set.
	Subscribe(cb Callbacks)
	// Load replaces the current source with the given locator, cancelling
	// any in-flight load.
	Load(url string) error
	// Play starts or resumes playback of the loaded source.
	Play() error
	// Pause halts playback, retaining position.
	Pause() error
	// Seek moves the playback position.
	Seek(position time.Duration) error
	// SetVolume sets the output volume on a 0-100 scale.
	SetVolume(percent int) error
	// Close releases the output device.
	Close() error
}
