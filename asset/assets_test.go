package asset

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/depotengine/depot"
)

type meshAsset struct{ Vertices int }

func TestAssetsEmplaceAndGet(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	h := assets.Emplace(meshAsset{Vertices: 24})
	v, ok := assets.Get(h.ID())
	require.True(t, ok)
	require.Equal(t, 24, v.Vertices)
}

func TestAssetsInsertCreatesSlotAtHandleGeneration(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	id := assets.allocator.Reserve()
	replaced, ok := assets.Insert(id, meshAsset{Vertices: 8})
	require.True(t, ok)
	require.False(t, replaced, "first insert into an empty slot is not a replacement")

	v, found := assets.Get(id)
	require.True(t, found)
	require.Equal(t, 8, v.Vertices)

	replaced, ok = assets.Insert(id, meshAsset{Vertices: 16})
	require.True(t, ok)
	require.True(t, replaced, "inserting over a present value is a replacement")
}

func TestAssetsInsertRejectsStaleGeneration(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	id := assets.allocator.Reserve()
	_, ok := assets.Insert(id, meshAsset{Vertices: 1})
	require.True(t, ok)

	stale := AssetIndex{index: id.Index(), generation: id.Generation() + 1}
	_, ok = assets.Insert(stale, meshAsset{Vertices: 2})
	require.False(t, ok, "insert at a mismatched generation must fail")
}

func TestAssetsRemoveReleasesIndexAndPublishesRemoved(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)
	reader := depot.Reader[AssetEvent[meshAsset]](world.Events())

	h := assets.Emplace(meshAsset{Vertices: 4})
	require.True(t, assets.Remove(h.ID()))

	_, found := assets.Get(h.ID())
	require.False(t, found)

	events := reader.Read()
	require.Len(t, events, 2)
	require.Equal(t, AssetAdded, events[0].Kind)
	require.Equal(t, AssetRemoved, events[1].Kind)
}

func TestAssetsWithMutEditsInPlaceAndPublishesModified(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)
	reader := depot.Reader[AssetEvent[meshAsset]](world.Events())

	h := assets.Emplace(meshAsset{Vertices: 10})
	ok := assets.WithMut(h.ID(), func(m *meshAsset) { m.Vertices *= 2 })
	require.True(t, ok)

	v, _ := assets.Get(h.ID())
	require.Equal(t, 20, v.Vertices)

	events := reader.Read()
	require.Len(t, events, 2)
	require.Equal(t, AssetModified, events[1].Kind)
}

func TestAssetsWithMutOnStaleHandleReturnsFalse(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	h := assets.Emplace(meshAsset{Vertices: 1})
	require.True(t, assets.Remove(h.ID()))

	ok := assets.WithMut(h.ID(), func(m *meshAsset) { m.Vertices = 99 })
	require.False(t, ok)
}

func TestAssetsHandleEventsDrainsDestructionAndPublishesUnused(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)
	reader := depot.Reader[AssetEvent[meshAsset]](world.Events())

	h := assets.Emplace(meshAsset{Vertices: 1})
	h.Release()

	assets.HandleEvents()

	_, found := assets.Get(h.ID())
	require.False(t, found, "HandleEvents should drop the value once the handle is destroyed")

	events := reader.Read()
	require.Len(t, events, 2)
	require.Equal(t, AssetAdded, events[0].Kind)
	require.Equal(t, AssetUnused, events[1].Kind)

	reissued := assets.allocator.Reserve()
	require.Equal(t, h.ID().Index(), reissued.Index(), "the released slot should be reused")
	require.Greater(t, reissued.Generation(), h.ID().Generation())
}

func TestAssetsBindUUIDResolvesThroughSideLane(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	h := assets.Emplace(meshAsset{Vertices: 7})
	id := uuid.New()
	assets.BindUUID(id, h.ID())

	v, ok := assets.GetByUUID(id)
	require.True(t, ok)
	require.Equal(t, 7, v.Vertices)

	_, ok = assets.GetByUUID(uuid.New())
	require.False(t, ok, "an unbound UUID must not resolve")
}

func TestAssetsRemoveUnbindsUUID(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	h := assets.Emplace(meshAsset{Vertices: 2})
	id := uuid.New()
	assets.BindUUID(id, h.ID())

	require.True(t, assets.Remove(h.ID()))

	_, ok := assets.GetByUUID(id)
	require.False(t, ok, "removing the slot must drop its UUID side-lane entry")
}

func TestAssetsHandleEventsUnbindsUUID(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	h := assets.Emplace(meshAsset{Vertices: 3})
	id := uuid.New()
	assets.BindUUID(id, h.ID())
	h.Release()

	assets.HandleEvents()

	_, ok := assets.GetByUUID(id)
	require.False(t, ok, "a destroyed handle's UUID binding must not outlive its slot")
}

func TestAssetsHandleEventsIgnoresStaleDestructionEvent(t *testing.T) {
	world := depot.NewWorld()
	assets := NewAssets[meshAsset](world)

	h := assets.Emplace(meshAsset{Vertices: 1})
	stale := DestructionEvent{Index: AssetIndex{index: h.ID().Index(), generation: h.ID().Generation() + 5}}
	assets.destroyed <- stale
	assets.HandleEvents()

	v, ok := assets.Get(h.ID())
	require.True(t, ok, "a destruction event for a stale generation must not touch the live slot")
	require.Equal(t, 1, v.Vertices)
}
