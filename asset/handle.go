// Package asset implements depot's asset index/handle pair, the
// generic Assets[T] slot table, and AssetServer's loader registry and
// background load queue, per spec §4.m-§4.o. No warehouse precedent
// (warehouse has no asset concept); grounded on the generational-index
// idiom depot's own EntityAllocator (entityalloc.go) already uses for
// entities, and on r3e-network-service_layer for the UUID/worker-queue
// pieces (SPEC_FULL.md §B).
package asset

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// AssetIndex is a generational index into an Assets[T] slot table,
// structurally the same shape as depot.EntityID but kept as its own
// type: an asset index is never a valid entity index and vice versa.
type AssetIndex struct {
	index      uint32
	generation uint32
}

// Index returns the backing slot index.
func (i AssetIndex) Index() uint32 { return i.index }

// Generation returns the generation the index was issued under.
func (i AssetIndex) Generation() uint32 { return i.generation }

// AssetIndexAllocator reserves and releases AssetIndex values. Reserve
// pops a free index and bumps its generation, or grows the pool if
// none are free; every reservation is also emitted on the Reserved
// channel so downstream consumers can observe creation order, per spec
// §4.m.
type AssetIndexAllocator struct {
	mu   sync.Mutex
	next uint32
	gens map[uint32]uint32

	free     chan uint32
	reserved chan AssetIndex
}

// NewAssetIndexAllocator builds an empty allocator. The free and
// reserved channels are bounded (4096 slots) rather than the
// unbounded channel the original implementation uses -- a release
// past that depth is dropped rather than blocking the caller,
// documented in DESIGN.md as a bounded-queue simplification.
func NewAssetIndexAllocator() *AssetIndexAllocator {
	return &AssetIndexAllocator{
		gens:     make(map[uint32]uint32),
		free:     make(chan uint32, 4096),
		reserved: make(chan AssetIndex, 4096),
	}
}

// Reserve pops a free index (bumping its generation) or grows the
// pool, and returns the result.
func (a *AssetIndexAllocator) Reserve() AssetIndex {
	a.mu.Lock()
	var idx uint32
	select {
	case idx = <-a.free:
	default:
		idx = a.next
		a.next++
	}
	a.gens[idx]++
	gen := a.gens[idx]
	a.mu.Unlock()

	id := AssetIndex{index: idx, generation: gen}
	select {
	case a.reserved <- id:
	default:
	}
	return id
}

// Release returns idx's slot to the free pool.
func (a *AssetIndexAllocator) Release(idx AssetIndex) {
	select {
	case a.free <- idx.index:
	default:
	}
}

// Reserved returns the channel every Reserve call also publishes to,
// in reservation order.
func (a *AssetIndexAllocator) Reserved() <-chan AssetIndex { return a.reserved }

// DestructionEvent is published exactly once per StrongHandle, when it
// is released (explicitly, or by the garbage collector).
type DestructionEvent struct{ Index AssetIndex }

// StrongHandle keeps an AssetIndex's slot alive. Go has no
// deterministic destructors, so depot approximates spec §4.m's "its
// destructor publishes DestructionEvent{id} exactly once" two ways: a
// runtime.SetFinalizer backstop for handles dropped without an
// explicit Release, and a public Release method for callers that want
// the event to fire immediately. A sync.Once means both paths agree
// on "exactly once" regardless of which one a caller exercises.
type StrongHandle struct {
	id            AssetIndex
	sender        chan<- DestructionEvent
	loaderManaged bool
	path          string
	assetUUID     uuid.UUID
	once          sync.Once
}

func newStrongHandle(id AssetIndex, sender chan<- DestructionEvent, loaderManaged bool, path string, assetUUID uuid.UUID) *StrongHandle {
	h := &StrongHandle{id: id, sender: sender, loaderManaged: loaderManaged, path: path, assetUUID: assetUUID}
	runtime.SetFinalizer(h, (*StrongHandle).release)
	return h
}

func (h *StrongHandle) release() {
	h.once.Do(func() {
		runtime.SetFinalizer(h, nil)
		select {
		case h.sender <- DestructionEvent{Index: h.id}:
		default:
		}
	})
}

// Release publishes h's DestructionEvent immediately, rather than
// waiting for garbage collection. Safe to call more than once, or
// alongside eventual finalization -- the event still fires exactly
// once.
func (h *StrongHandle) Release() { h.release() }

// ID returns the handle's underlying AssetIndex.
func (h *StrongHandle) ID() AssetIndex { return h.id }

// Path returns the source path this handle was loaded from, or "" for
// a handle created directly via Assets[T].Emplace.
func (h *StrongHandle) Path() string { return h.path }

// UUID returns the stable identifier this handle is addressable by
// through Assets[T]'s UUID side-lane, or uuid.Nil for a handle that was
// never bound to one (e.g. a bare Assets[T].Emplace with no caller-
// supplied identity).
func (h *StrongHandle) UUID() uuid.UUID { return h.assetUUID }

// LoaderManaged reports whether AssetServer owns this handle's
// lifecycle (true for anything obtained through Load).
func (h *StrongHandle) LoaderManaged() bool { return h.loaderManaged }

// UntypedHandle is either a live StrongHandle or a bare weak
// AssetIndex, matching spec §4.m's `variant<shared<StrongHandle>,
// AssetIndex>`.
type UntypedHandle struct {
	strong *StrongHandle
	weak   AssetIndex
}

// StrongUntyped wraps a StrongHandle as an UntypedHandle.
func StrongUntyped(h *StrongHandle) UntypedHandle { return UntypedHandle{strong: h} }

// WeakUntyped wraps a bare AssetIndex as an UntypedHandle with no
// owning StrongHandle.
func WeakUntyped(id AssetIndex) UntypedHandle { return UntypedHandle{weak: id} }

// IsStrong reports whether u owns a StrongHandle.
func (u UntypedHandle) IsStrong() bool { return u.strong != nil }

// IsWeak reports whether u is a bare index with no owning handle.
func (u UntypedHandle) IsWeak() bool { return u.strong == nil }

// Weak extracts the underlying AssetIndex regardless of variant.
func (u UntypedHandle) Weak() AssetIndex {
	if u.strong != nil {
		return u.strong.id
	}
	return u.weak
}

// Strong returns the owned StrongHandle and true, or (nil, false) for
// a weak handle.
func (u UntypedHandle) Strong() (*StrongHandle, bool) {
	return u.strong, u.strong != nil
}

// Equal compares two handles by underlying AssetIndex, ignoring
// strong/weak variant.
func (u UntypedHandle) Equal(other UntypedHandle) bool { return u.Weak() == other.Weak() }
