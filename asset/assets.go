package asset

import (
	"sync"

	"github.com/google/uuid"

	"github.com/depotengine/depot"
)

// AssetEventKind names one lifecycle transition an asset of type T can
// go through, per spec §4.n.
type AssetEventKind uint8

const (
	AssetAdded AssetEventKind = iota
	AssetModified
	AssetUnused
	AssetLoadedWithDependencies
	AssetRemoved
)

func (k AssetEventKind) String() string {
	switch k {
	case AssetAdded:
		return "Added"
	case AssetModified:
		return "Modified"
	case AssetUnused:
		return "Unused"
	case AssetLoadedWithDependencies:
		return "LoadedWithDependencies"
	case AssetRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// AssetEvent is published on the owning World's event channel for
// every lifecycle transition a T-typed asset slot goes through.
// Readers fetch it the same way any other event is read:
// depot.Reader[AssetEvent[T]](world.Events()).
type AssetEvent[T any] struct {
	Kind  AssetEventKind
	Index AssetIndex
}

type assetSlot[T any] struct {
	value      T
	present    bool
	generation uint32
}

// Assets is the slot table for one asset type T: a slot vector indexed
// by AssetIndex.Index() and guarded against stale handles by
// AssetIndex.Generation(), plus a map side-lane keyed by uuid.UUID for
// assets addressed by a stable external identifier rather than by slot
// position, per spec §3 and §4.n.
type Assets[T any] struct {
	mu        sync.RWMutex
	slots     map[uint32]*assetSlot[T]
	byUUID    map[uuid.UUID]uint32
	uuidOf    map[uint32]uuid.UUID
	allocator *AssetIndexAllocator
	destroyed chan DestructionEvent
	events    *depot.Events
}

// NewAssets constructs an empty slot table publishing its AssetEvents
// into world's event aggregate.
func NewAssets[T any](world *depot.World) *Assets[T] {
	return &Assets[T]{
		slots:     make(map[uint32]*assetSlot[T]),
		byUUID:    make(map[uuid.UUID]uint32),
		uuidOf:    make(map[uint32]uuid.UUID),
		allocator: NewAssetIndexAllocator(),
		destroyed: make(chan DestructionEvent, 4096),
		events:    world.Events(),
	}
}

func (a *Assets[T]) publish(kind AssetEventKind, idx AssetIndex) {
	depot.Writer[AssetEvent[T]](a.events).Send(AssetEvent[T]{Kind: kind, Index: idx})
}

// Emplace reserves a new index, stores v there, and returns an owning
// StrongHandle.
func (a *Assets[T]) Emplace(v T) *StrongHandle {
	id := a.allocator.Reserve()
	a.mu.Lock()
	a.slots[id.Index()] = &assetSlot[T]{value: v, present: true, generation: id.Generation()}
	a.mu.Unlock()
	a.publish(AssetAdded, id)
	return newStrongHandle(id, a.destroyed, false, "", uuid.Nil)
}

// BindUUID registers id as a side-lane alias for index, without
// requiring a value to be present at index yet. Used by AssetServer to
// make a handle resolvable by its deterministic path UUID (GetByUUID)
// as soon as it's reserved, rather than only after the background load
// completes and HandleResults inserts the decoded value.
func (a *Assets[T]) BindUUID(id uuid.UUID, index AssetIndex) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byUUID[id] = index.Index()
	a.uuidOf[index.Index()] = id
}

// GetByUUID looks up a value through the UUID side-lane rather than by
// AssetIndex. Unlike Get, there is no generation to check -- a UUID
// binding is explicitly released by unbindUUID when its slot is
// recycled, so a stale UUID simply misses rather than aliasing whatever
// now occupies that slot.
func (a *Assets[T]) GetByUUID(id uuid.UUID) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.byUUID[id]
	if !ok {
		var zero T
		return zero, false
	}
	slot, ok := a.slots[idx]
	if !ok || !slot.present {
		var zero T
		return zero, false
	}
	return slot.value, true
}

// unbindUUID drops index's UUID side-lane entry, if it has one. Must be
// called with a.mu held.
func (a *Assets[T]) unbindUUID(index uint32) {
	if id, ok := a.uuidOf[index]; ok {
		delete(a.uuidOf, index)
		delete(a.byUUID, id)
	}
}

// Insert stores v at handle's slot, creating the slot at handle's
// generation if it doesn't exist yet. Returns (false, false) if the
// slot exists at a different generation than handle's (the handle is
// stale); otherwise (true, true) if a present value was replaced, or
// (false, true) if the slot was empty.
func (a *Assets[T]) Insert(handle AssetIndex, v T) (replaced bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	slot, exists := a.slots[handle.Index()]
	if exists && slot.generation != handle.Generation() {
		return false, false
	}
	if !exists {
		slot = &assetSlot[T]{generation: handle.Generation()}
		a.slots[handle.Index()] = slot
	}
	replaced = slot.present
	slot.value = v
	slot.present = true
	kind := AssetAdded
	if replaced {
		kind = AssetModified
	}
	a.publish(kind, handle)
	return replaced, true
}

// Remove forces removal of handle's value (get subsequently returns
// false for it) and releases its index to the allocator. The
// StrongHandle object itself, if one still exists, is unaffected --
// only the slot's content and generation-on-reissue change.
func (a *Assets[T]) Remove(handle AssetIndex) bool {
	a.mu.Lock()
	slot, ok := a.slots[handle.Index()]
	if !ok || slot.generation != handle.Generation() || !slot.present {
		a.mu.Unlock()
		return false
	}
	var zero T
	slot.value = zero
	slot.present = false
	a.unbindUUID(handle.Index())
	a.mu.Unlock()

	a.allocator.Release(handle)
	a.publish(AssetRemoved, handle)
	return true
}

// Get returns the value stored at handle, if handle's generation still
// matches the slot's.
func (a *Assets[T]) Get(handle AssetIndex) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	slot, ok := a.slots[handle.Index()]
	if !ok || !slot.present || slot.generation != handle.Generation() {
		var zero T
		return zero, false
	}
	return slot.value, true
}

// WithMut calls fn with exclusive access to handle's stored value and
// publishes AssetModified afterward. Returns false without calling fn
// if handle is stale or empty.
func (a *Assets[T]) WithMut(handle AssetIndex, fn func(*T)) bool {
	a.mu.Lock()
	slot, ok := a.slots[handle.Index()]
	if !ok || !slot.present || slot.generation != handle.Generation() {
		a.mu.Unlock()
		return false
	}
	fn(&slot.value)
	a.mu.Unlock()
	a.publish(AssetModified, handle)
	return true
}

// HandleEvents drains every DestructionEvent queued since the last
// call: for each, if the event's generation still matches the slot's,
// the value is dropped, the slot's generation is bumped, the index is
// released to the allocator, and AssetUnused is published. Intended to
// be called once per frame from a system (spec §4.n
// handle_events_internal).
func (a *Assets[T]) HandleEvents() {
	for {
		select {
		case ev := <-a.destroyed:
			a.handleDestruction(ev)
		default:
			return
		}
	}
}

func (a *Assets[T]) handleDestruction(ev DestructionEvent) {
	a.mu.Lock()
	slot, ok := a.slots[ev.Index.Index()]
	if !ok || slot.generation != ev.Index.Generation() {
		a.mu.Unlock()
		return
	}
	var zero T
	slot.value = zero
	slot.present = false
	slot.generation++
	released := AssetIndex{index: ev.Index.Index(), generation: slot.generation}
	a.unbindUUID(ev.Index.Index())
	a.mu.Unlock()

	a.allocator.Release(released)
	a.publish(AssetUnused, ev.Index)
}
