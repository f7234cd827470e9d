package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numba-music/storefront/internal/infra/kv"
)

func sampleItem(id string, price float64) Item {
	return Item{
		ID:        id,
		ProductID: "prod-" + id,
		Title:     "Midnight Dreams",
		Artist:    "SoundQuest",
		Type:      "Album",
		Price:     price,
		Image:     "/cover.jpg",
	}
}

func TestCart_AddRemoveClear(t *testing.T) {
	c := New(kv.NewMemory())

	assert.True(t, c.AddItem(sampleItem("a", 9.99)))
	assert.True(t, c.AddItem(sampleItem("b", 1.99)))
	assert.Equal(t, 2, c.ItemCount())
	assert.InDelta(t, 11.98, c.Total(), 0.001)

	c.RemoveItem("a")
	assert.Equal(t, 1, c.ItemCount())
	assert.Equal(t, "b", c.Items()[0].ID)

	c.Clear()
	assert.Equal(t, 0, c.ItemCount())
	assert.InDelta(t, 0, c.Total(), 0.001)
}

func TestCart_NoDuplicates(t *testing.T) {
	c := New(kv.NewMemory())

	assert.True(t, c.AddItem(sampleItem("a", 9.99)))
	assert.False(t, c.AddItem(sampleItem("a", 9.99)))
	assert.Equal(t, 1, c.ItemCount())
}

func TestCart_RemoveMissingIsNoop(t *testing.T) {
	c := New(kv.NewMemory())
	c.AddItem(sampleItem("a", 9.99))

	c.RemoveItem("missing")
	assert.Equal(t, 1, c.ItemCount())
}

func TestCart_PersistsAcrossInstances(t *testing.T) {
	store := kv.NewMemory()

	c1 := New(store)
	c1.AddItem(sampleItem("a", 9.99))

	c2 := New(store)
	require.Equal(t, 1, c2.ItemCount())
	assert.Equal(t, "a", c2.Items()[0].ID)
}

func TestCart_CorruptStateStartsEmpty(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set("numba_cart", []byte(`{"not":"a list"}`)))

	c := New(store)
	assert.Equal(t, 0, c.ItemCount())
	assert.True(t, c.AddItem(sampleItem("a", 1)))
}
