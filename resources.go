package depot

import "sync"

// resourceSlot holds one resource value behind its own reader/writer
// lock, per spec §3 ("the resource map stores each value behind a
// reader/writer lock; mutation requires exclusive hold"). Grounded on the
// resourceMap pattern in DangerosoDavo/ecs/resource_container.go,
// specialized to one lock per type instead of one lock for the whole map.
type resourceSlot struct {
	mu    sync.RWMutex
	value any
	set   bool
}

// Resources is the process-wide singleton store addressed by type.
type Resources struct {
	types *TypeRegistry

	mu     sync.Mutex // guards the slots map itself, not its contents
	slots  map[TypeId]*resourceSlot
	taken  map[TypeId]bool // never written; ResourceScope clears the slot's set flag instead
}

// NewResources constructs an empty resource container bound to a
// TypeRegistry (so resource TypeIds share the same id-space diagnostics
// use for components).
func NewResources(types *TypeRegistry) *Resources {
	return &Resources{
		types: types,
		slots: make(map[TypeId]*resourceSlot),
		taken: make(map[TypeId]bool),
	}
}

func (r *Resources) slotFor(id TypeId, create bool) *resourceSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok && create {
		slot = &resourceSlot{}
		r.slots[id] = slot
	}
	return slot
}

// InsertResource stores v as the resource for type T, replacing any
// existing value.
func InsertResource[T any](r *Resources, v T) {
	desc := Register[T](r.types, StorageClassTable)
	slot := r.slotFor(desc.ID, true)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	slot.value = v
	slot.set = true
}

// InitResource stores T's zero value as the resource if absent, and is a
// no-op otherwise.
func InitResource[T any](r *Resources) {
	desc := Register[T](r.types, StorageClassTable)
	slot := r.slotFor(desc.ID, true)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.set {
		var zero T
		slot.value = zero
		slot.set = true
	}
}

// RemoveResource deletes the stored resource for T, if any, returning it.
func RemoveResource[T any](r *Resources) (T, bool) {
	var zero T
	desc := Register[T](r.types, StorageClassTable)
	slot := r.slotFor(desc.ID, false)
	if slot == nil {
		return zero, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.set {
		return zero, false
	}
	v, _ := slot.value.(T)
	slot.set = false
	slot.value = nil
	return v, true
}

// GetResource returns a copy of the resource for T and whether it was
// present. Callers that need to mutate in place should use WithResourceMut
// or ResourceScope.
func GetResource[T any](r *Resources) (T, bool) {
	var zero T
	desc := Register[T](r.types, StorageClassTable)
	slot := r.slotFor(desc.ID, false)
	if slot == nil {
		return zero, false
	}
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	if !slot.set {
		return zero, false
	}
	v, _ := slot.value.(T)
	return v, true
}

// WithResourceMut calls fn with exclusive access to the resource for T,
// persisting any change fn makes through its pointer argument. It returns
// ErrResourceMissing if T has not been inserted.
func WithResourceMut[T any](r *Resources, fn func(*T)) error {
	desc := Register[T](r.types, StorageClassTable)
	slot := r.slotFor(desc.ID, false)
	if slot == nil {
		return ErrResourceMissing
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.set {
		return ErrResourceMissing
	}
	v, _ := slot.value.(T)
	fn(&v)
	slot.value = v
	return nil
}

// ResourceScope temporarily removes the resource for T from r, invokes fn
// with the value and the owning World, then reinserts whatever fn leaves
// in its pointer argument (even if fn panics -- depot prioritizes never
// losing a resource over suppressing the panic, which is re-raised after
// the value is restored). It returns ErrResourceMissing if T is absent.
// Concurrent ResourceScope calls are safe across disjoint resource types;
// while a scope is in progress the resource is absent, so GetResource
// reports it missing and a second scope over the same type returns
// ErrResourceMissing.
func ResourceScope[T any](world *World, fn func(*World, *T)) error {
	desc := Register[T](world.resources.types, StorageClassTable)
	slot := world.resources.slotFor(desc.ID, false)
	if slot == nil {
		return ErrResourceMissing
	}
	slot.mu.Lock()
	if !slot.set {
		slot.mu.Unlock()
		return ErrResourceMissing
	}
	v, _ := slot.value.(T)
	slot.value = nil
	slot.set = false
	slot.mu.Unlock()

	defer func() {
		slot.mu.Lock()
		slot.value = v
		slot.set = true
		slot.mu.Unlock()
	}()

	fn(world, &v)
	return nil
}
