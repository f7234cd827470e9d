package player

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numba-music/storefront/internal/app/lastplayed"
	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/domain/catalog"
	"github.com/numba-music/storefront/internal/infra/kv"
)

// fakeOutput is a synchronous Output: Play fires OnReady immediately,
// and tests drive OnEnded/OnError by hand.
type fakeOutput struct {
	cb Callbacks

	loads      []string
	playCalls  int
	pauseCalls int
	seeks      []time.Duration
	volume     int
	closed     bool

	loadErr error
	playErr error
}

func (f *fakeOutput) Subscribe(cb Callbacks)        { f.cb = cb }
func (f *fakeOutput) Pause() error                  { f.pauseCalls++; return nil }
func (f *fakeOutput) Seek(p time.Duration) error    { f.seeks = append(f.seeks, p); return nil }
func (f *fakeOutput) SetVolume(percent int) error   { f.volume = percent; return nil }
func (f *fakeOutput) Close() error                  { f.closed = true; return nil }

func (f *fakeOutput) Load(url string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loads = append(f.loads, url)
	return nil
}

func (f *fakeOutput) Play() error {
	if f.playErr != nil {
		return f.playErr
	}
	f.playCalls++
	if f.cb.OnReady != nil {
		f.cb.OnReady()
	}
	return nil
}

type fixture struct {
	out        *fakeOutput
	gate       *playgate.Ledger
	snapshots  *lastplayed.Store
	controller *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := kv.NewMemory()
	out := &fakeOutput{}
	gate := playgate.NewLedger(store, playgate.Config{})
	snapshots := lastplayed.NewStore(store)
	c := NewController(out, gate, snapshots, Config{})
	t.Cleanup(c.Close)

	return &fixture{out: out, gate: gate, snapshots: snapshots, controller: c}
}

func midnightDreams() (ReleaseRef, []catalog.Track) {
	release := ReleaseRef{
		ID:     "midnight-dreams",
		Title:  "Midnight Dreams",
		Image:  "/album-cover.jpg",
		Artist: "SoundQuest",
	}
	tracks := []catalog.Track{
		{Number: 1, Title: "Midnight Dreams", Duration: 225, AudioURL: "https://cdn.example.com/md-1.mp3", Price: 1.99},
		{Number: 2, Title: "Starlight", Duration: 252, AudioURL: "https://cdn.example.com/md-2.mp3", Price: 1.99},
		{Number: 3, Title: "Moonrise", Duration: 238, AudioURL: "https://cdn.example.com/md-3.mp3", Price: 1.99},
	}
	return release, tracks
}

// drain empties the event channel and returns everything collected.
func drain(c *Controller) []Event {
	var events []Event
	for {
		select {
		case e := <-c.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestController_PlayReleaseStartsPlayback(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))

	assert.Equal(t, StatePlaying, f.controller.State())
	assert.Equal(t, []string{"https://cdn.example.com/md-1.mp3"}, f.out.loads)

	track, ok := f.controller.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "Midnight Dreams", track.Title)
	assert.Equal(t, 0, f.controller.CurrentIndex())
	assert.Equal(t, "midnight-dreams", f.controller.CurrentRelease().ID)

	// One granted play was recorded after starting.
	assert.Equal(t, 1, f.gate.GetPlayCount("midnight-dreams-track-1"))

	events := drain(f.controller)
	require.NotEmpty(t, events)
	assert.Equal(t, EventTrackStarted, events[0].Type)
	assert.Equal(t, "midnight-dreams-track-1", events[0].TrackID)
}

func TestController_PlayReleaseWritesSnapshot(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	require.NoError(t, f.controller.PlayRelease(release, tracks, 1))

	snap := f.snapshots.Load()
	require.NotNil(t, snap)
	assert.Equal(t, "midnight-dreams-track-2", snap.TrackID)
	assert.Equal(t, "Starlight", snap.TrackTitle)
	assert.Equal(t, "SoundQuest", snap.Artist)
	assert.Equal(t, "/album-cover.jpg", snap.ReleaseImage)
}

func TestController_FreePlayExhaustionBlocks(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()
	trackID := "midnight-dreams-track-1"

	// All five free plays succeed; the fifth leaves zero remaining.
	for i := 0; i < playgate.DefaultMaxFreePlays; i++ {
		require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	}
	assert.Equal(t, 0, f.gate.GetRemainingPlays(trackID))
	drain(f.controller)

	loadsBefore := len(f.out.loads)
	stateBefore := f.controller.State()

	// The sixth attempt is a hard stop: no audio change, no extra count.
	err := f.controller.PlayRelease(release, tracks, 0)
	require.Error(t, err)
	assert.True(t, IsBlocked(err))

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, trackID, blocked.TrackID)
	assert.Equal(t, "Midnight Dreams", blocked.Title)
	assert.InDelta(t, 1.99, blocked.Price, 0.001)
	assert.Equal(t, playgate.DefaultMaxFreePlays, blocked.MaxFreePlays)

	assert.Equal(t, playgate.DefaultMaxFreePlays, f.gate.GetPlayCount(trackID))
	assert.Equal(t, loadsBefore, len(f.out.loads))
	assert.Equal(t, stateBefore, f.controller.State())

	events := drain(f.controller)
	require.Len(t, events, 1)
	assert.Equal(t, EventPlayBlocked, events[0].Type)
	require.NotNil(t, events[0].Blocked)
}

func TestController_PurchaseUnblocksForever(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()
	trackID := "midnight-dreams-track-1"

	for i := 0; i < playgate.DefaultMaxFreePlays; i++ {
		require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	}
	require.Error(t, f.controller.PlayRelease(release, tracks, 0))

	f.gate.MarkTrackPurchased(trackID)

	// Purchased tracks play without limit and without counting.
	for i := 0; i < 3; i++ {
		require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
		assert.True(t, f.gate.IsTrackPurchased(trackID))
	}
	assert.Equal(t, 0, f.gate.GetPlayCount(trackID))
}

func TestController_PlayReleaseEmptyTracklist(t *testing.T) {
	f := newFixture(t)

	err := f.controller.PlayRelease(ReleaseRef{ID: "empty"}, nil, 0)
	assert.ErrorIs(t, err, ErrEmptyTracklist)
	assert.Equal(t, StateIdle, f.controller.State())
	assert.Empty(t, f.out.loads)
}

func TestController_PlayReleaseIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	assert.ErrorIs(t, f.controller.PlayRelease(release, tracks, len(tracks)), ErrTrackIndexRange)
	assert.ErrorIs(t, f.controller.PlayRelease(release, tracks, -1), ErrTrackIndexRange)
	assert.Equal(t, StateIdle, f.controller.State())
	assert.Empty(t, f.out.loads)
}

func TestController_SkipWraparound(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	require.NoError(t, f.controller.PlayRelease(release, tracks, len(tracks)-1))
	require.NoError(t, f.controller.SkipToNext())
	assert.Equal(t, 0, f.controller.CurrentIndex())

	require.NoError(t, f.controller.SkipToPrevious())
	assert.Equal(t, len(tracks)-1, f.controller.CurrentIndex())
}

func TestController_SkipOnEmptyPlaylistIsNoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.SkipToNext())
	require.NoError(t, f.controller.SkipToPrevious())
	assert.Equal(t, StateIdle, f.controller.State())
	assert.Empty(t, f.out.loads)
}

func TestController_SkipRechecksGate(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	// Exhaust track 2 before ever reaching it by skipping.
	for i := 0; i < playgate.DefaultMaxFreePlays; i++ {
		f.gate.IncrementPlayCount("midnight-dreams-track-2")
	}

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	drain(f.controller)

	err := f.controller.SkipToNext()
	require.Error(t, err)
	assert.True(t, IsBlocked(err))

	// Blocked skip leaves the session on track 1.
	assert.Equal(t, 0, f.controller.CurrentIndex())
	track, ok := f.controller.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "Midnight Dreams", track.Title)
	assert.Equal(t, playgate.DefaultMaxFreePlays, f.gate.GetPlayCount("midnight-dreams-track-2"))
}

func TestController_SkipCountsPlay(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	require.NoError(t, f.controller.SkipToNext())

	assert.Equal(t, 1, f.gate.GetPlayCount("midnight-dreams-track-2"))

	// The skip overwrote the snapshot with the reached track.
	snap := f.snapshots.Load()
	require.NotNil(t, snap)
	assert.Equal(t, "midnight-dreams-track-2", snap.TrackID)
}

func TestController_TrackEndAutoAdvances(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	drain(f.controller)

	f.out.cb.OnEnded()

	assert.Equal(t, 1, f.controller.CurrentIndex())
	assert.Equal(t, StatePlaying, f.controller.State())

	events := drain(f.controller)
	require.NotEmpty(t, events)
	assert.Equal(t, EventTrackEnded, events[0].Type)
	require.NotNil(t, events[0].Track)
	assert.Equal(t, "Midnight Dreams", events[0].Track.Title)
}

func TestController_TrackEndIntoBlockedTrackPauses(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	// Exhaust track 2 so the auto-advance target is blocked.
	for i := 0; i < playgate.DefaultMaxFreePlays; i++ {
		f.gate.IncrementPlayCount("midnight-dreams-track-2")
	}

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	drain(f.controller)
	loadsBefore := len(f.out.loads)

	f.out.cb.OnEnded()

	// Nothing new was loaded and the session no longer claims to play.
	assert.Equal(t, loadsBefore, len(f.out.loads))
	assert.Equal(t, StatePaused, f.controller.State())
	assert.False(t, f.controller.IsPlaying())
	assert.Equal(t, 0, f.controller.CurrentIndex())

	events := drain(f.controller)
	require.Len(t, events, 3)
	assert.Equal(t, EventTrackEnded, events[0].Type)
	assert.Equal(t, EventPlayBlocked, events[1].Type)
	assert.Equal(t, EventStateChanged, events[2].Type)
	assert.Equal(t, StatePaused, events[2].State)
}

func TestController_TogglePlayPause(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	// No-op with nothing loaded.
	require.NoError(t, f.controller.TogglePlayPause())
	assert.Equal(t, 0, f.out.pauseCalls)

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	require.Equal(t, StatePlaying, f.controller.State())

	require.NoError(t, f.controller.TogglePlayPause())
	assert.Equal(t, StatePaused, f.controller.State())
	assert.Equal(t, 1, f.out.pauseCalls)

	require.NoError(t, f.controller.TogglePlayPause())
	assert.Equal(t, StatePlaying, f.controller.State())
}

func TestController_PlaySampleBypassesGate(t *testing.T) {
	f := newFixture(t)

	f.controller.PlaySample("Kick 01", "https://cdn.example.com/kick-01.wav", "Drum Essentials Vol. 1", "/pack.jpg")

	assert.Equal(t, StatePlaying, f.controller.State())
	track, ok := f.controller.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "Kick 01", track.Title)
	assert.Len(t, f.controller.Playlist(), 1)

	// Samples never touch the ledger or the snapshot.
	assert.Equal(t, 0, f.gate.GetPlayCount("kick-01"))
	assert.Nil(t, f.snapshots.Load())

	// Repeated plays are never blocked.
	for i := 0; i < playgate.DefaultMaxFreePlays+2; i++ {
		f.controller.PlaySample("Kick 01", "https://cdn.example.com/kick-01.wav", "Drum Essentials Vol. 1", "/pack.jpg")
	}
	assert.Equal(t, StatePlaying, f.controller.State())
}

func TestController_PlayTrackIsUngated(t *testing.T) {
	f := newFixture(t)

	track := catalog.Track{Number: 1, Title: "Echoes", Duration: 267, AudioURL: "https://cdn.example.com/echoes.mp3"}
	f.controller.PlayTrack(track)

	assert.Equal(t, StatePlaying, f.controller.State())
	assert.Nil(t, f.snapshots.Load())
}

func TestController_RestorePrimesWithoutPlaying(t *testing.T) {
	f := newFixture(t)

	f.controller.Restore(&lastplayed.Snapshot{
		TrackID:       "midnight-dreams-track-1",
		TrackTitle:    "Midnight Dreams",
		TrackNumber:   1,
		TrackDuration: 225,
		TrackPrice:    1.99,
		TrackAudioURL: "https://cdn.example.com/md-1.mp3",
		ReleaseID:     "midnight-dreams",
		ReleaseTitle:  "Midnight Dreams",
		Artist:        "SoundQuest",
	})

	// Display state is primed, audio never started.
	assert.Equal(t, StateIdle, f.controller.State())
	track, ok := f.controller.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "Midnight Dreams", track.Title)
	assert.Empty(t, f.out.loads)
	assert.Equal(t, 0, f.gate.GetPlayCount("midnight-dreams-track-1"))

	// Toggling a restored session goes through the regular gate path.
	require.NoError(t, f.controller.TogglePlayPause())
	assert.Equal(t, StatePlaying, f.controller.State())
	assert.Equal(t, []string{"https://cdn.example.com/md-1.mp3"}, f.out.loads)
	assert.Equal(t, 1, f.gate.GetPlayCount("midnight-dreams-track-1"))
}

func TestController_RestoreNilIsNoop(t *testing.T) {
	f := newFixture(t)
	f.controller.Restore(nil)
	assert.Equal(t, StateIdle, f.controller.State())
	_, ok := f.controller.CurrentTrack()
	assert.False(t, ok)
}

func TestController_SeekTo(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	// No-op without a track.
	f.controller.SeekTo(10 * time.Second)
	assert.Empty(t, f.out.seeks)

	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))
	f.controller.SeekTo(42 * time.Second)

	assert.Equal(t, []time.Duration{42 * time.Second}, f.out.seeks)
	assert.Equal(t, 42*time.Second, f.controller.Position())
}

func TestController_SetVolumeClamps(t *testing.T) {
	f := newFixture(t)

	f.controller.SetVolume(150)
	assert.Equal(t, 100, f.controller.Volume())
	assert.Equal(t, 100, f.out.volume)

	f.controller.SetVolume(-10)
	assert.Equal(t, 0, f.controller.Volume())

	f.controller.SetVolume(55)
	assert.Equal(t, 55, f.out.volume)
}

func TestController_DefaultVolume(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 70, f.controller.Volume())
	assert.Equal(t, 70, f.out.volume)
}

func TestController_InterruptedLoadIsSwallowed(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	f.out.playErr = ErrLoadInterrupted
	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))

	// The interruption is benign: no error fallback, no state change
	// beyond the pending load.
	assert.Equal(t, StateLoading, f.controller.State())
	for _, e := range drain(f.controller) {
		assert.NotEqual(t, EventStateChanged, e.Type)
	}
}

func TestController_OutputErrorFallsBackToPaused(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()

	f.out.loadErr = errors.New("decode failed")
	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))

	assert.Equal(t, StatePaused, f.controller.State())

	events := drain(f.controller)
	require.NotEmpty(t, events)
	assert.Equal(t, EventStateChanged, events[len(events)-1].Type)
}

func TestController_PositionAndMetadataCallbacks(t *testing.T) {
	f := newFixture(t)
	release, tracks := midnightDreams()
	require.NoError(t, f.controller.PlayRelease(release, tracks, 0))

	f.out.cb.OnPosition(90 * time.Second)
	assert.Equal(t, 90*time.Second, f.controller.Position())

	f.out.cb.OnMetadata(226 * time.Second)
	assert.Equal(t, 226*time.Second, f.controller.Duration())
}
