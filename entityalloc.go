package depot

import "sync"

// EntityID is a generational entity identifier: an index into the
// allocator's metadata plus the generation recorded there when the index
// was last (re)issued. An identifier is valid iff its generation equals
// the generation currently stored at that index.
type EntityID struct {
	index      uint32
	generation uint32
}

// Index returns the identifier's backing index.
func (e EntityID) Index() uint32 { return e.index }

// Generation returns the generation the identifier was issued under.
func (e EntityID) Generation() uint32 { return e.generation }

// IsZero reports whether e is the zero value (never issued by an
// allocator).
func (e EntityID) IsZero() bool { return e.index == 0 && e.generation == 0 }

// Location records where an entity's components currently live: which
// archetype table, and which row within it.
type Location struct {
	Archetype uint32
	Row       int
}

type entityMeta struct {
	generation uint32
	location   Location
	hasLoc     bool
}

// EntityAllocator hands out generational EntityIDs, recycling freed
// indices from a LIFO free-list and supporting a concurrent reservation
// path (ReserveEntity) for systems that only have shared World access.
// Reservations are placeholders: Get reports ErrNotFlushed for them until
// the next Flush, mirroring spec §4.b's verify_flush invariant, while
// Contains reports them live as soon as they are reserved. Grounded on the generation/free-list bookkeeping in
// DangerosoDavo/ecs/entity.go (EntityRegistry), extended with the
// reserve/flush split spec §4.b requires.
type EntityAllocator struct {
	mu        sync.Mutex
	meta      []entityMeta
	freeList  []uint32
	unflushed map[uint32]struct{}
}

// NewEntityAllocator constructs an empty allocator.
func NewEntityAllocator() *EntityAllocator {
	return &EntityAllocator{unflushed: make(map[uint32]struct{})}
}

// Alloc immediately allocates an entity, preferring the free-list over
// growing the metadata vector. The returned id has no Location until the
// caller sets one (directly, not through Flush -- Alloc is synchronous).
func (a *EntityAllocator) Alloc() EntityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocLocked()
}

func (a *EntityAllocator) allocLocked() EntityID {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.meta[idx].hasLoc = false
		return EntityID{index: idx, generation: a.meta[idx].generation}
	}
	idx := uint32(len(a.meta))
	a.meta = append(a.meta, entityMeta{generation: 1})
	return EntityID{index: idx, generation: 1}
}

// ReserveCapacity ensures at least n indices are available for future
// Alloc calls without growing the metadata vector on the hot path.
func (a *EntityAllocator) ReserveCapacity(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	have := len(a.freeList)
	for ; have < n; have++ {
		idx := uint32(len(a.meta))
		a.meta = append(a.meta, entityMeta{generation: 1})
		a.freeList = append(a.freeList, idx)
	}
}

// ReserveEntity reserves an entity from a system that only holds shared
// World access. The entity is valid (a future Free will recognize it) but
// its Location is not observable via Get until Flush runs.
func (a *EntityAllocator) ReserveEntity() EntityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.allocLocked()
	a.unflushed[id.index] = struct{}{}
	return id
}

// SetLocation records where an entity's components live. Valid for both
// directly-allocated and (pre-flush) reserved entities.
func (a *EntityAllocator) SetLocation(e EntityID, loc Location) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(e.index) >= len(a.meta) || a.meta[e.index].generation != e.generation {
		return
	}
	a.meta[e.index].location = loc
	a.meta[e.index].hasLoc = true
}

// Free invalidates an entity, bumping its generation and returning it to
// the free-list. It reports the entity's last known Location, if any.
func (a *EntityAllocator) Free(e EntityID) (Location, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(e.index) >= len(a.meta) || a.meta[e.index].generation != e.generation {
		return Location{}, false
	}
	loc := a.meta[e.index].location
	hadLoc := a.meta[e.index].hasLoc
	a.meta[e.index].generation++
	a.meta[e.index].hasLoc = false
	delete(a.unflushed, e.index)
	a.freeList = append(a.freeList, e.index)
	return loc, hadLoc
}

// ReserveGenerations bumps a freed slot's generation by k without
// reusing it (so any outstanding weak references to that slot are
// invalidated further). Returns whether the slot was in fact free.
func (a *EntityAllocator) ReserveGenerations(index uint32, k uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(index) >= len(a.meta) {
		return false
	}
	for _, free := range a.freeList {
		if free == index {
			a.meta[index].generation += k
			return true
		}
	}
	return false
}

// Contains reports whether e refers to a currently live entity.
func (a *EntityAllocator) Contains(e EntityID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(e.index) >= len(a.meta) {
		return false
	}
	return a.meta[e.index].generation == e.generation
}

// Get returns an entity's Location. It returns ErrNotFlushed if the
// entity was created via ReserveEntity and Flush has not yet run for it,
// and ErrEntityNotFound if the id is stale.
func (a *EntityAllocator) Get(e EntityID) (Location, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(e.index) >= len(a.meta) || a.meta[e.index].generation != e.generation {
		return Location{}, ErrEntityNotFound
	}
	if _, pending := a.unflushed[e.index]; pending {
		return Location{}, ErrNotFlushed
	}
	if !a.meta[e.index].hasLoc {
		return Location{}, ErrEntityNotFound
	}
	return a.meta[e.index].location, nil
}

// Flush resolves every reservation made via ReserveEntity since the last
// Flush: fn is called once per pending entity so the caller can assign its
// Location (e.g. after inserting a row for it), after which the entity
// becomes visible to Contains/Get like any directly allocated entity.
func (a *EntityAllocator) Flush(fn func(EntityID, *Location)) {
	a.mu.Lock()
	pending := make([]uint32, 0, len(a.unflushed))
	for idx := range a.unflushed {
		pending = append(pending, idx)
	}
	a.mu.Unlock()

	for _, idx := range pending {
		a.mu.Lock()
		gen := a.meta[idx].generation
		a.mu.Unlock()

		id := EntityID{index: idx, generation: gen}
		var loc Location
		if fn != nil {
			fn(id, &loc)
		}

		a.mu.Lock()
		a.meta[idx].location = loc
		a.meta[idx].hasLoc = true
		delete(a.unflushed, idx)
		a.mu.Unlock()
	}
}

// Len reports the size of the metadata vector (allocated-or-freed slot
// count), not the number of currently live entities.
func (a *EntityAllocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.meta)
}
