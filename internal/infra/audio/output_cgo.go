//go:build (linux && cgo) || windows || darwin

package audio

import (
	"bytes"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/numba-music/storefront/internal/app/player"
)

// Available indicates whether audio playback is supported in this build.
const Available = true

// Output plays MP3 sources through the system speaker. It downloads each
// source into memory before decoding, the way a preview player can afford
// to.
type Output struct {
	mu sync.Mutex

	cb player.Callbacks

	initialized bool
	sampleRate  beep.SampleRate
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	streamer    beep.StreamSeekCloser
	format      beep.Format

	percent    int // last requested volume, reapplied on every load
	generation uint64
	watching   bool // position watcher running for the current generation

	done      chan struct{}
	closeOnce sync.Once
}

// NewOutput creates a speaker-backed output.
func NewOutput() *Output {
	return &Output{
		sampleRate: beep.SampleRate(44100),
		percent:    100,
		done:       make(chan struct{}),
	}
}

// Subscribe registers the callback set.
func (o *Output) Subscribe(cb player.Callbacks) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cb = cb
}

// Load downloads and decodes the source, replacing whatever was loaded.
// A Load that is overtaken by a newer one returns ErrLoadInterrupted.
func (o *Output) Load(url string) error {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	data, err := fetchSource(url)
	if err != nil {
		return err
	}

	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return errors.Wrap(err, "failed to decode audio source")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		streamer.Close()
		return player.ErrLoadInterrupted
	}

	if !o.initialized {
		if err := speaker.Init(o.sampleRate, o.sampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			return errors.Wrap(err, "failed to init speaker")
		}
		o.initialized = true
	}

	o.stopLocked()
	o.watching = false
	o.streamer = streamer
	o.format = format

	resampled := beep.Resample(4, format.SampleRate, o.sampleRate, streamer)
	o.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}
	o.volume = &effects.Volume{Streamer: o.ctrl, Base: 2}
	o.applyVolumeLocked(o.percent)

	speaker.Play(beep.Seq(o.volume, beep.Callback(func() {
		o.mu.Lock()
		ended := gen == o.generation
		onEnded := o.cb.OnEnded
		o.mu.Unlock()
		// Replaced streamers also run their callback; only the live one
		// counts as playback reaching the end.
		if ended && onEnded != nil {
			go onEnded()
		}
	})))

	if o.cb.OnMetadata != nil {
		o.cb.OnMetadata(format.SampleRate.D(streamer.Len()))
	}
	return nil
}

// Play starts or resumes playback.
func (o *Output) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl == nil {
		return errors.New("no source loaded")
	}

	speaker.Lock()
	o.ctrl.Paused = false
	speaker.Unlock()

	if !o.watching {
		o.watching = true
		go o.watchPosition(o.generation)
	}

	if o.cb.OnReady != nil {
		o.cb.OnReady()
	}
	return nil
}

// Pause halts playback, retaining position.
func (o *Output) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl == nil {
		return nil
	}
	speaker.Lock()
	o.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Seek moves the playback position.
func (o *Output) Seek(position time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.streamer == nil {
		return nil
	}

	speaker.Lock()
	defer speaker.Unlock()
	return o.streamer.Seek(o.format.SampleRate.N(position))
}

// SetVolume sets the output volume on a 0-100 scale. The setting sticks
// across loads.
func (o *Output) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return errors.Newf("volume out of range: %d", percent)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.percent = percent
	if o.volume != nil {
		speaker.Lock()
		o.applyVolumeLocked(percent)
		speaker.Unlock()
	}
	return nil
}

// Close releases the output.
func (o *Output) Close() error {
	o.closeOnce.Do(func() {
		close(o.done)

		o.mu.Lock()
		defer o.mu.Unlock()
		o.generation++
		o.stopLocked()
		if o.initialized {
			speaker.Clear()
		}
	})
	return nil
}

// applyVolumeLocked maps the linear 0-100 scale onto beep's exponential
// volume. Zero mutes outright.
func (o *Output) applyVolumeLocked(percent int) {
	if o.volume == nil {
		return
	}
	if percent == 0 {
		o.volume.Silent = true
		return
	}
	o.volume.Silent = false
	o.volume.Volume = math.Log2(float64(percent) / 100)
}

func (o *Output) stopLocked() {
	if o.ctrl != nil {
		speaker.Lock()
		o.ctrl.Paused = true
		speaker.Unlock()
	}
	if o.streamer != nil {
		o.streamer.Close()
		o.streamer = nil
	}
	o.ctrl = nil
	o.volume = nil
}

// watchPosition reports the playback position once a second until the
// loaded source is replaced or the output closes.
func (o *Output) watchPosition(gen uint64) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			o.mu.Lock()
			if gen != o.generation || o.streamer == nil {
				if gen == o.generation {
					o.watching = false
				}
				o.mu.Unlock()
				return
			}
			speaker.Lock()
			pos := o.format.SampleRate.D(o.streamer.Position())
			speaker.Unlock()
			onPosition := o.cb.OnPosition
			o.mu.Unlock()

			if onPosition != nil {
				onPosition(pos)
			}
		}
	}
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
