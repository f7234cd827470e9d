//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"

	"github.com/numba-music/storefront/internal/app/player"
)

// Available indicates whether audio playback is supported in this build.
// Playback needs cgo for the native sound libraries on linux.
const Available = false

// Output is a stub for builds without a sound backend. Loading always
// fails with ErrUnavailable.
type Output struct{}

// NewOutput creates a stub output.
func NewOutput() *Output {
	return &Output{}
}

func (o *Output) Subscribe(player.Callbacks) {}

func (o *Output) Load(string) error {
	return ErrUnavailable
}

func (o *Output) Play() error  { return ErrUnavailable }
func (o *Output) Pause() error { return nil }

func (o *Output) Seek(time.Duration) error { return nil }
func (o *Output) SetVolume(int) error      { return nil }
func (o *Output) Close() error             { return nil }
