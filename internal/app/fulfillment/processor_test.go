package fulfillment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/domain/catalog"
	"github.com/numba-music/storefront/internal/infra/kv"
	"github.com/numba-music/storefront/internal/store"
)

type stubCatalog struct {
	releases map[string]catalog.Release
}

func (s *stubCatalog) Releases() []catalog.Release {
	out := make([]catalog.Release, 0, len(s.releases))
	for _, r := range s.releases {
		out = append(out, r)
	}
	return out
}

func (s *stubCatalog) GetRelease(id string) (*catalog.Release, error) {
	r, ok := s.releases[id]
	if !ok {
		return nil, catalog.ErrReleaseNotFound
	}
	return &r, nil
}

func (s *stubCatalog) Artists() []catalog.Artist { return nil }
func (s *stubCatalog) GetArtist(string) (*catalog.Artist, error) {
	return nil, catalog.ErrArtistNotFound
}
func (s *stubCatalog) SamplePacks() []catalog.SamplePack { return nil }
func (s *stubCatalog) GetSamplePack(string) (*catalog.SamplePack, error) {
	return nil, catalog.ErrSamplePackNotFound
}
func (s *stubCatalog) Search(string) []catalog.Release { return nil }

type fixture struct {
	processor *Processor
	orders    *store.OrdersRepo
	purchases *store.PurchasesRepo
	ledger    *playgate.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	orders := store.NewOrdersRepo(db)
	purchases := store.NewPurchasesRepo(db)
	ledger := playgate.NewLedger(kv.NewMemory(), playgate.Config{})

	provider := &stubCatalog{releases: map[string]catalog.Release{
		"midnight-dreams": {
			ID:    "midnight-dreams",
			Title: "Midnight Dreams",
			Tracks: []catalog.Track{
				{Number: 1, Title: "Midnight Intro"},
				{Number: 2, Title: "City Lights"},
			},
		},
	}}

	return &fixture{
		processor: NewProcessor(orders, purchases, ledger, provider),
		orders:    orders,
		purchases: purchases,
		ledger:    ledger,
	}
}

func completedOrder(orderID string) Event {
	return Event{
		Type: EventOrderCompleted,
		Data: OrderData{
			ID:          orderID,
			AmountCents: 999,
			Status:      store.OrderStatusCompleted,
			Metadata: map[string]any{
				"user_id":    "user-1",
				"release_id": "midnight-dreams",
			},
		},
	}
}

func TestProcess_CompletedOrderGrantsAccess(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.processor.Process(completedOrder("polar-1")))

	order, err := f.orders.GetByProviderOrderID("polar-1")
	require.NoError(t, err)
	assert.Equal(t, store.OrderStatusCompleted, order.Status)
	assert.Equal(t, "midnight-dreams", order.ReleaseID)

	owns, err := f.purchases.Owns("user-1", "midnight-dreams")
	require.NoError(t, err)
	assert.True(t, owns)

	// Every track of the release is unlocked in the ledger.
	assert.True(t, f.ledger.IsTrackPurchased("midnight-dreams-track-1"))
	assert.True(t, f.ledger.IsTrackPurchased("midnight-dreams-track-2"))
}

func TestProcess_CompletedOrderResetsPlayCounts(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.ledger.IncrementPlayCount("midnight-dreams-track-1")
	}
	require.False(t, f.ledger.HasFreePlaysRemaining("midnight-dreams-track-1"))

	require.NoError(t, f.processor.Process(completedOrder("polar-1")))

	assert.Equal(t, 0, f.ledger.GetPlayCount("midnight-dreams-track-1"))
}

func TestProcess_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.processor.Process(completedOrder("polar-1")))
	require.NoError(t, f.processor.Process(completedOrder("polar-1")))

	orders, err := f.orders.ListByUser("user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestProcess_PendingOrderDoesNotGrant(t *testing.T) {
	f := newFixture(t)

	evt := completedOrder("polar-1")
	evt.Type = EventOrderCreated
	evt.Data.Status = "pending"
	require.NoError(t, f.processor.Process(evt))

	owns, err := f.purchases.Owns("user-1", "midnight-dreams")
	require.NoError(t, err)
	assert.False(t, owns)
	assert.False(t, f.ledger.IsTrackPurchased("midnight-dreams-track-1"))
}

func TestProcess_EmptyStatusStoresCompletedWithoutGrant(t *testing.T) {
	f := newFixture(t)

	evt := completedOrder("polar-1")
	evt.Data.Status = ""
	require.NoError(t, f.processor.Process(evt))

	// The order row defaults to completed, but access waits for an
	// explicit completed status from the provider.
	order, err := f.orders.GetByProviderOrderID("polar-1")
	require.NoError(t, err)
	assert.Equal(t, store.OrderStatusCompleted, order.Status)

	owns, err := f.purchases.Owns("user-1", "midnight-dreams")
	require.NoError(t, err)
	assert.False(t, owns)
	assert.False(t, f.ledger.IsTrackPurchased("midnight-dreams-track-1"))
}

func TestProcess_RefundRevokesAccess(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.processor.Process(completedOrder("polar-1")))

	refund := completedOrder("polar-1")
	refund.Type = EventOrderRefunded
	require.NoError(t, f.processor.Process(refund))

	order, err := f.orders.GetByProviderOrderID("polar-1")
	require.NoError(t, err)
	assert.Equal(t, store.OrderStatusRefunded, order.Status)

	owns, err := f.purchases.Owns("user-1", "midnight-dreams")
	require.NoError(t, err)
	assert.False(t, owns)
	assert.False(t, f.ledger.IsTrackPurchased("midnight-dreams-track-1"))
}

func TestProcess_RefundForUnknownOrderStillRevokes(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.purchases.Grant("user-1", "midnight-dreams"))
	f.ledger.MarkTrackPurchased("midnight-dreams-track-1")

	refund := completedOrder("never-seen")
	refund.Type = EventOrderRefunded
	require.NoError(t, f.processor.Process(refund))

	owns, err := f.purchases.Owns("user-1", "midnight-dreams")
	require.NoError(t, err)
	assert.False(t, owns)
	assert.False(t, f.ledger.IsTrackPurchased("midnight-dreams-track-1"))
}

func TestProcess_SubscriptionEventsAcknowledged(t *testing.T) {
	f := newFixture(t)

	for _, typ := range []string{EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled} {
		assert.NoError(t, f.processor.Process(Event{Type: typ, Data: OrderData{ID: "sub-1"}}))
	}
}

func TestProcess_UnknownEventType(t *testing.T) {
	f := newFixture(t)

	err := f.processor.Process(Event{Type: "checkout.updated"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestProcess_UnknownReleaseStillGrants(t *testing.T) {
	f := newFixture(t)

	evt := completedOrder("polar-1")
	evt.Data.Metadata["release_id"] = "not-in-catalog"
	require.NoError(t, f.processor.Process(evt))

	owns, err := f.purchases.Owns("user-1", "not-in-catalog")
	require.NoError(t, err)
	assert.True(t, owns)
}
