package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/app/lastplayed"
	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/domain/catalog"
)

// Errors
var (
	ErrEmptyTracklist  = errors.New("tracklist is empty")
	ErrTrackIndexRange = errors.New("start index outside tracklist bounds")
)

// BlockedError is the gate-blocked outcome: an unpurchased track with no
// free plays remaining. It is a defined business outcome, not a failure;
// the only recovery path is a purchase.
type BlockedError struct {
	TrackID      string
	Title        string
	Price        float64
	MaxFreePlays int
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("all %d free plays used for %q: purchase the track for $%.2f to continue listening",
		e.MaxFreePlays, e.Title, e.Price)
}

// IsBlocked reports whether err is a gate-blocked outcome.
func IsBlocked(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}

// ReleaseRef carries the display context of the release being played.
type ReleaseRef struct {
	ID     string
	Title  string
	Image  string
	Artist string
}

// Config holds controller configuration.
type Config struct {
	DefaultVolume int // initial volume on the 0-100 scale; 0 means 70
}

// Controller manages what is loaded into the audio output. It owns the
// output exclusively, consults the play-gate ledger before starting a
// gated track, and overwrites the last-played snapshot on every
// successful gated play start.
//
// Lock discipline: state is mutated under c.mu, but the output is never
// called with the lock held, so outputs are free to fire callbacks
// synchronously from within Load/Play.
type Controller struct {
	mu sync.Mutex

	output    Output
	gate      *playgate.Ledger
	snapshots *lastplayed.Store

	// Session state
	state    State
	playlist []catalog.Track
	index    int
	current  *catalog.Track
	release  ReleaseRef
	gated    bool // whether the active playlist is gate-enforced

	position time.Duration
	duration time.Duration
	volume   int

	// Events
	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller bound to the given output. It
// subscribes to the output's callbacks once, here; the ended-to-advance
// wiring is the named transition handleTrackEnded.
func NewController(output Output, gate *playgate.Ledger, snapshots *lastplayed.Store, cfg Config) *Controller {
	volume := cfg.DefaultVolume
	if volume <= 0 {
		volume = 70
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		output:    output,
		gate:      gate,
		snapshots: snapshots,
		state:     StateIdle,
		volume:    volume,
		eventCh:   make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
	}

	output.Subscribe(Callbacks{
		OnReady:    c.handleReady,
		OnPosition: c.handlePosition,
		OnMetadata: c.handleMetadata,
		OnEnded:    c.handleTrackEnded,
		OnError:    c.handleOutputError,
	})

	if err := output.SetVolume(volume); err != nil {
		zlog.Warn().Msgf("player: failed to set initial volume: %v", err)
	}

	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Close releases the controller and its output.
func (c *Controller) Close() {
	c.cancel()
	if err := c.output.Close(); err != nil {
		zlog.Warn().Msgf("player: failed to close output: %v", err)
	}
	close(c.eventCh)
}

// PlayRelease starts playback of tracks[startIndex] within the given
// release. The gate is consulted first: a blocked track mutates no state
// and returns a BlockedError. On success the play count is incremented
// for unpurchased tracks (after playback is initiated, so the
// bookkeeping write never delays the start) and the last-played snapshot
// is overwritten.
func (c *Controller) PlayRelease(release ReleaseRef, tracks []catalog.Track, startIndex int) error {
	if len(tracks) == 0 {
		return ErrEmptyTracklist
	}
	if startIndex < 0 || startIndex >= len(tracks) {
		return errors.Wrapf(ErrTrackIndexRange, "index=%d len=%d", startIndex, len(tracks))
	}

	track := tracks[startIndex]
	trackID := catalog.TrackID(release.ID, track.Number)

	purchased := c.gate.IsTrackPurchased(trackID)
	if !purchased && !c.gate.HasFreePlaysRemaining(trackID) {
		return c.blocked(trackID, track)
	}

	c.mu.Lock()
	c.release = release
	c.playlist = make([]catalog.Track, len(tracks))
	copy(c.playlist, tracks)
	c.index = startIndex
	t := track
	c.current = &t
	c.gated = true
	c.state = StateLoading
	c.position = 0
	c.duration = time.Duration(track.Duration) * time.Second
	c.mu.Unlock()

	c.startOutput(track)

	if !purchased {
		c.gate.IncrementPlayCount(trackID)
	}
	c.saveSnapshot(release, track)
	return nil
}

// PlayTrack loads and plays a single track without playlist or gate
// semantics. Used for standalone previews; the ledger is not consulted
// and no snapshot is written.
func (c *Controller) PlayTrack(track catalog.Track) {
	c.mu.Lock()
	t := track
	c.current = &t
	c.state = StateLoading
	c.position = 0
	c.duration = time.Duration(track.Duration) * time.Second
	c.mu.Unlock()

	c.startOutput(track)
}

// PlaySample plays an ungated single-item playlist for preview content
// such as sample packs. Bypasses the ledger entirely.
func (c *Controller) PlaySample(name, audioURL, packTitle, packImage string) {
	track := catalog.Track{Number: 1, Title: name, AudioURL: audioURL}

	c.mu.Lock()
	c.release = ReleaseRef{Title: packTitle, Image: packImage}
	c.playlist = []catalog.Track{track}
	c.index = 0
	t := track
	c.current = &t
	c.gated = false
	c.state = StateLoading
	c.position = 0
	c.duration = 0
	c.mu.Unlock()

	c.startOutput(track)
}

// TogglePlayPause pauses a playing track or resumes a paused one. A
// restored session (idle with a track primed) is started through the
// regular gate path. No-op when nothing is loaded.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil
	}

	switch c.state {
	case StatePlaying, StateLoading:
		c.state = StatePaused
		c.mu.Unlock()
		if err := c.output.Pause(); err != nil {
			c.handleOutputError(err)
		}
		c.publishStateChanged()
		return nil

	case StatePaused:
		c.state = StatePlaying
		c.mu.Unlock()
		if err := c.output.Play(); err != nil {
			c.handleOutputError(err)
		}
		c.publishStateChanged()
		return nil

	default: // StateIdle with a primed track (restored snapshot)
		c.mu.Unlock()
		return c.startAt(0, false)
	}
}

// SkipToNext advances through the playlist with wraparound. The gate is
// re-checked against the newly reached track; a blocked skip leaves all
// state unchanged.
func (c *Controller) SkipToNext() error {
	return c.startAt(1, true)
}

// SkipToPrevious retreats through the playlist with wraparound, with the
// same gate re-check as SkipToNext.
func (c *Controller) SkipToPrevious() error {
	return c.startAt(-1, true)
}

// SeekTo sets the playback position directly. No validation beyond what
// the output enforces.
func (c *Controller) SeekTo(position time.Duration) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.position = position
	c.mu.Unlock()

	if err := c.output.Seek(position); err != nil {
		c.handleOutputError(err)
	}
}

// SetVolume sets the output volume, clamped to the 0-100 scale. The
// output retains the level across track loads.
func (c *Controller) SetVolume(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	c.mu.Lock()
	c.volume = level
	c.mu.Unlock()

	if err := c.output.SetVolume(level); err != nil {
		c.handleOutputError(err)
	}
}

// Restore primes the session display state from a last-played snapshot
// without touching the output. Playback does not auto-start; the next
// TogglePlayPause goes through the regular gate path.
func (c *Controller) Restore(snap *lastplayed.Snapshot) {
	if snap == nil {
		return
	}

	track := catalog.Track{
		Number:   snap.TrackNumber,
		Title:    snap.TrackTitle,
		Duration: snap.TrackDuration,
		AudioURL: snap.TrackAudioURL,
		Price:    snap.TrackPrice,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.release = ReleaseRef{
		ID:     snap.ReleaseID,
		Title:  snap.ReleaseTitle,
		Image:  snap.ReleaseImage,
		Artist: snap.Artist,
	}
	c.playlist = []catalog.Track{track}
	c.index = 0
	c.current = &track
	c.gated = true
	c.state = StateIdle
	c.position = 0
	c.duration = time.Duration(track.Duration) * time.Second
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying reports whether audio is actively outputting.
func (c *Controller) IsPlaying() bool {
	return c.State() == StatePlaying
}

// CurrentTrack returns the current track, if any.
func (c *Controller) CurrentTrack() (catalog.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return catalog.Track{}, false
	}
	return *c.current, true
}

// CurrentRelease returns the display context of the active release.
func (c *Controller) CurrentRelease() ReleaseRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release
}

// CurrentIndex returns the index of the current track in the playlist.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Playlist returns a copy of the active playlist.
func (c *Controller) Playlist() []catalog.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]catalog.Track, len(c.playlist))
	copy(out, c.playlist)
	return out
}

// Position returns the current playback position.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Duration returns the total duration of the current track.
func (c *Controller) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Volume returns the current volume level.
func (c *Controller) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// startAt moves step positions through the playlist (with wraparound)
// and starts the reached track. step 0 restarts the current index. The
// gate is re-checked for gated playlists; manual marks user-initiated
// skips, which emit EventTrackSkipped for the track being left.
func (c *Controller) startAt(step int, manual bool) error {
	c.mu.Lock()
	if len(c.playlist) == 0 {
		c.mu.Unlock()
		return nil
	}
	next := ((c.index+step)%len(c.playlist) + len(c.playlist)) % len(c.playlist)
	track := c.playlist[next]
	gated := c.gated
	releaseID := c.release.ID
	release := c.release
	c.mu.Unlock()

	var trackID string
	purchased := true
	if gated && releaseID != "" {
		trackID = catalog.TrackID(releaseID, track.Number)
		purchased = c.gate.IsTrackPurchased(trackID)
		if !purchased && !c.gate.HasFreePlaysRemaining(trackID) {
			return c.blocked(trackID, track)
		}
	}

	c.mu.Lock()
	var skipped *catalog.Track
	if manual && c.current != nil {
		prev := *c.current
		skipped = &prev
	}
	c.index = next
	t := track
	c.current = &t
	c.state = StateLoading
	c.position = 0
	c.duration = time.Duration(track.Duration) * time.Second
	c.mu.Unlock()

	if skipped != nil {
		c.publish(Event{Type: EventTrackSkipped, Track: skipped, State: c.State()})
	}

	c.startOutput(track)

	if gated && trackID != "" {
		if !purchased {
			c.gate.IncrementPlayCount(trackID)
		}
		c.saveSnapshot(release, track)
	}
	return nil
}

// startOutput loads the track into the output and begins playback.
// Called without the lock held.
func (c *Controller) startOutput(track catalog.Track) {
	if err := c.output.Load(track.AudioURL); err != nil {
		c.handleOutputError(err)
		return
	}
	if err := c.output.Play(); err != nil {
		c.handleOutputError(err)
	}
}

// blocked emits the gate-blocked outcome without mutating session state.
func (c *Controller) blocked(trackID string, track catalog.Track) *BlockedError {
	be := &BlockedError{
		TrackID:      trackID,
		Title:        track.Title,
		Price:        track.Price,
		MaxFreePlays: c.gate.MaxFreePlays(),
	}

	t := track
	c.publish(Event{
		Type:    EventPlayBlocked,
		TrackID: trackID,
		Track:   &t,
		State:   c.State(),
		Blocked: be,
	})
	return be
}

// saveSnapshot overwrites the last-played snapshot with the now-current
// track and release context.
func (c *Controller) saveSnapshot(release ReleaseRef, track catalog.Track) {
	c.snapshots.Save(lastplayed.Snapshot{
		TrackID:       catalog.TrackID(release.ID, track.Number),
		TrackTitle:    track.Title,
		TrackNumber:   track.Number,
		TrackDuration: track.Duration,
		TrackPrice:    track.Price,
		TrackAudioURL: track.AudioURL,
		ReleaseID:     release.ID,
		ReleaseTitle:  release.Title,
		ReleaseImage:  release.Image,
		Artist:        release.Artist,
	})
}

// handleReady transitions Loading to Playing once the output has enough
// data and has started.
func (c *Controller) handleReady() {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.state = StatePlaying
	var track *catalog.Track
	if c.current != nil {
		t := *c.current
		track = &t
	}
	var trackID string
	if c.gated && c.release.ID != "" && track != nil {
		trackID = catalog.TrackID(c.release.ID, track.Number)
	}
	c.mu.Unlock()

	c.publish(Event{Type: EventTrackStarted, TrackID: trackID, Track: track, State: StatePlaying})
}

func (c *Controller) handlePosition(position time.Duration) {
	c.mu.Lock()
	c.position = position
	c.mu.Unlock()
}

func (c *Controller) handleMetadata(duration time.Duration) {
	c.mu.Lock()
	c.duration = duration
	c.mu.Unlock()
}

// handleTrackEnded is the named ended-to-advance transition: the ended
// track is reported and the playlist auto-advances with wraparound. An
// exhausted playlist (no tracks) drops to Idle; a gate-blocked advance
// drops to Paused.
func (c *Controller) handleTrackEnded() {
	c.mu.Lock()
	var ended *catalog.Track
	if c.current != nil {
		t := *c.current
		ended = &t
	}
	empty := len(c.playlist) == 0
	if empty {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if ended != nil {
		c.publish(Event{Type: EventTrackEnded, Track: ended, State: c.State()})
	}
	if empty {
		return
	}

	if err := c.startAt(1, false); err != nil {
		if !IsBlocked(err) {
			zlog.Warn().Msgf("player: auto-advance failed: %v", err)
			return
		}
		// The output has gone silent and no new track loaded; the session
		// must not keep reporting Playing.
		c.mu.Lock()
		c.state = StatePaused
		c.mu.Unlock()
		c.publishStateChanged()
	}
}

// handleOutputError swallows benign interruptions (a new play request
// superseding a pending one); any other output failure is logged and the
// controller falls back to a non-playing display state.
func (c *Controller) handleOutputError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrLoadInterrupted) {
		zlog.Debug().Msgf("player: load interrupted: %v", err)
		return
	}

	zlog.Error().Msgf("player: output error: %v", err)

	c.mu.Lock()
	if c.current != nil {
		c.state = StatePaused
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()

	c.publishStateChanged()
}

func (c *Controller) publishStateChanged() {
	c.mu.Lock()
	var track *catalog.Track
	if c.current != nil {
		t := *c.current
		track = &t
	}
	state := c.state
	c.mu.Unlock()

	c.publish(Event{Type: EventStateChanged, Track: track, State: state})
}

// publish sends an event without blocking.
func (c *Controller) publish(e Event) {
	select {
	case <-c.ctx.Done():
		// Controller closed, don't send.
		return
	default:
	}

	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event.
	}
}
