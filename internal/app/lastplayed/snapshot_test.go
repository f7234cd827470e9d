package lastplayed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numba-music/storefront/internal/infra/kv"
)

func testSnapshot() Snapshot {
	return Snapshot{
		TrackID:       "midnight-dreams-track-1",
		TrackTitle:    "Midnight Dreams",
		TrackNumber:   1,
		TrackDuration: 225,
		TrackPrice:    1.99,
		TrackAudioURL: "https://cdn.example.com/audio/md-1.mp3",
		ReleaseID:     "midnight-dreams",
		ReleaseTitle:  "Midnight Dreams",
		ReleaseImage:  "/album-cover.jpg",
		Artist:        "SoundQuest",
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore(kv.NewMemory())

	assert.Nil(t, s.Load())
	assert.False(t, s.HasPlayedBefore())

	s.Save(testSnapshot())

	got := s.Load()
	require.NotNil(t, got)
	assert.Equal(t, "midnight-dreams-track-1", got.TrackID)
	assert.Equal(t, "SoundQuest", got.Artist)
	assert.NotZero(t, got.Timestamp)
	assert.True(t, s.HasPlayedBefore())
}

func TestStore_OverwriteOnSave(t *testing.T) {
	s := NewStore(kv.NewMemory())

	s.Save(testSnapshot())

	second := testSnapshot()
	second.TrackID = "neon-nights-track-1"
	second.ReleaseID = "neon-nights"
	s.Save(second)

	got := s.Load()
	require.NotNil(t, got)
	assert.Equal(t, "neon-nights-track-1", got.TrackID)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(kv.NewMemory())

	s.Save(testSnapshot())
	s.Clear()

	assert.Nil(t, s.Load())
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	s := NewStore(kv.NewMemory())

	now := time.Now()
	s.now = func() time.Time { return now }
	s.Save(testSnapshot())

	// Just inside the window.
	s.now = func() time.Time { return now.Add(TTL - time.Hour) }
	assert.NotNil(t, s.Load())

	// Past the window: discarded on read and cleared.
	s.now = func() time.Time { return now.Add(TTL + time.Hour) }
	assert.Nil(t, s.Load())

	// Cleared for good, even back inside the window.
	s.now = func() time.Time { return now }
	assert.Nil(t, s.Load())
}

func TestStore_CorruptSnapshotDiscarded(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set("numba_last_played_track", []byte(`[1,2,3]`)))

	s := NewStore(store)
	assert.Nil(t, s.Load())

	// The corrupt record was cleared.
	_, ok, err := store.Get("numba_last_played_track")
	require.NoError(t, err)
	assert.False(t, ok)
}
