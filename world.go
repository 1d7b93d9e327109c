package depot

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/table"
)

// changeTickWraparoundGuard bounds how far behind the current tick a
// recorded Added/Modified value may fall before CheckChangeTick clamps it
// forward. World.changeTick is a uint32 that wraps at math.MaxUint32; a
// slot whose tick is allowed to fall arbitrarily far behind would, after
// the counter wraps, compare as newer than the current tick even though it
// hasn't been touched in ages. Keeping the guard well under half the
// counter's range means two slots can never both sit on the far side of a
// wraparound relative to each other.
const changeTickWraparoundGuard = math.MaxUint32 / 2

// ChangeTick records when a component slot was last written (Added) and
// last reached through a mutable accessor (Modified), both relative to
// World.changeTick -- the counter a schedule dispatcher bumps once per
// run so systems can ask "has this changed since I last looked".
type ChangeTick struct {
	Added    uint32
	Modified uint32
}

// tickKey addresses one component slot for change-tracking purposes.
// Table-class components don't expose row storage depot can attach a tick
// column to (the table package's internals aren't ours to extend), so
// ticks live in this side-table instead, keyed by the physical location.
type tickKey struct {
	tbl table.Table
	row int
	typ TypeId
}

// World is the top-level ECS container: a TypeRegistry shared by every
// other piece, an EntityAllocator for generational identity, Table-class
// archetype storage, SparseSet-class component storage, Resources,
// Events, and a per-call-site CommandQueue builder. Adapted from
// TheBitDrifter/warehouse's storage+entity split: warehouse has no single
// aggregate type playing this role (callers wire storage/query/cursor by
// hand), so World is depot's addition, generalizing that split into the
// one object a schedule dispatcher (package depot/ecs) runs systems
// against, per spec §5.
type World struct {
	types     *TypeRegistry
	entities  *EntityAllocator
	storage   Storage
	resources *Resources
	events    *Events

	changeTick atomic.Uint32

	sparseMu sync.RWMutex
	sparse   map[TypeId]sparseColumn

	ticksMu sync.Mutex
	ticks   map[tickKey]ChangeTick

	// tableEvents are the hooks fired by every archetype table this World
	// builds, set once at construction via WithTableEvents. Kept on World
	// rather than as a package-level global (warehouse's Config) so two
	// Worlds in one process never share hooks.
	tableEvents table.TableEvents

	// mu is the World's single exclusivity lock: exclusive systems,
	// Dispatcher.WorldScope, command-queue application and the App's
	// extract step hold its write side; systems declaring only compatible
	// Access (see access.go) run concurrently under its read side via the
	// ecs dispatcher. Storage and resource operations do not take it.
	mu sync.RWMutex
}

// NewWorld constructs an empty World, applying any WorldOptions in order.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		types:    NewTypeRegistry(),
		entities: NewEntityAllocator(),
		sparse:   make(map[TypeId]sparseColumn),
		ticks:    make(map[tickKey]ChangeTick),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.resources = NewResources(w.types)
	w.events = NewEvents(w.types)
	w.storage = newStorage(w, table.Factory.NewSchema())
	return w
}

// Types returns the World's shared TypeRegistry.
func (w *World) Types() *TypeRegistry { return w.types }

// Entities returns the World's EntityAllocator.
func (w *World) Entities() *EntityAllocator { return w.entities }

// Storage returns the World's Table-class archetype storage.
func (w *World) Storage() Storage { return w.storage }

// Resources returns the World's resource container.
func (w *World) Resources() *Resources { return w.resources }

// Events returns the World's event aggregate.
func (w *World) Events() *Events { return w.events }

// Lock/Unlock/RLock/RUnlock expose the World's single exclusivity lock
// directly; the ecs dispatcher uses these to serialize exclusive systems
// and command application against everything else.
func (w *World) Lock()    { w.mu.Lock() }
func (w *World) Unlock()  { w.mu.Unlock() }
func (w *World) RLock()   { w.mu.RLock() }
func (w *World) RUnlock() { w.mu.RUnlock() }

// Tick returns the current change-tick value.
func (w *World) Tick() uint32 { return w.changeTick.Load() }

// AdvanceTick bumps the global change tick by one, called once per
// schedule run, rotates the event double-buffer to match, and runs
// CheckChangeTick so per-slot ticks never fall far enough behind to be
// misread after the counter wraps.
func (w *World) AdvanceTick() uint32 {
	w.events.Rotate()
	next := w.changeTick.Add(1)
	w.CheckChangeTick()
	return next
}

// CheckChangeTick clamps every recorded per-slot Added/Modified tick to no
// more than changeTickWraparoundGuard behind the current tick, per spec
// §4.g. It is a no-op until the counter has actually run far enough for
// the guard to matter, so it costs nothing for the lifetime of almost
// every process.
func (w *World) CheckChangeTick() {
	current := w.changeTick.Load()
	if current < changeTickWraparoundGuard {
		return
	}
	floor := current - changeTickWraparoundGuard

	w.ticksMu.Lock()
	defer w.ticksMu.Unlock()
	for k, ct := range w.ticks {
		changed := false
		if ct.Added < floor {
			ct.Added = floor
			changed = true
		}
		if ct.Modified < floor {
			ct.Modified = floor
			changed = true
		}
		if changed {
			w.ticks[k] = ct
		}
	}
}

// stampInsert records the current tick as both Added and Modified for
// every component in comps at (tbl, row), called whenever a row is
// created or an entity gains components via AddComponent.
func (w *World) stampInsert(tbl table.Table, row int, comps []Component) {
	tick := w.changeTick.Load()
	w.ticksMu.Lock()
	defer w.ticksMu.Unlock()
	for _, c := range comps {
		typ := componentTypeID(w.types, c)
		w.ticks[tickKey{tbl: tbl, row: row, typ: typ}] = ChangeTick{Added: tick, Modified: tick}
	}
}

// markModified records the current tick as Modified for one component
// slot, called by AccessibleComponent.GetMutFromCursor.
func (w *World) markModified(tbl table.Table, row int, typ TypeId) {
	tick := w.changeTick.Load()
	w.ticksMu.Lock()
	defer w.ticksMu.Unlock()
	key := tickKey{tbl: tbl, row: row, typ: typ}
	cur := w.ticks[key]
	cur.Modified = tick
	if cur.Added == 0 {
		cur.Added = tick
	}
	w.ticks[key] = cur
}

// ticksFor returns the recorded ChangeTick for one component slot, and
// whether anything has been recorded for it yet.
func (w *World) ticksFor(tbl table.Table, row int, typ TypeId) (ChangeTick, bool) {
	w.ticksMu.Lock()
	defer w.ticksMu.Unlock()
	ct, ok := w.ticks[tickKey{tbl: tbl, row: row, typ: typ}]
	return ct, ok
}

// clearTicksFor drops every recorded tick for a row about to be deleted.
// Table-backed rows are addressed by swap-remove, so a stale row index
// left behind here would otherwise be misattributed to whichever entity
// the table engine relocates into that slot next.
func (w *World) clearTicksFor(tbl table.Table, row int) {
	w.ticksMu.Lock()
	defer w.ticksMu.Unlock()
	for k := range w.ticks {
		if k.tbl == tbl && k.row == row {
			delete(w.ticks, k)
		}
	}
}

// componentTypeID resolves the TypeId already registered for a Component
// value's concrete type, registering it as Table-class on first sight.
func componentTypeID(types *TypeRegistry, c Component) TypeId {
	t := reflectTypeOf(c)
	if desc, ok := types.LookupType(t); ok {
		return desc.ID
	}
	return registerConcrete(types, t, StorageClassTable)
}

// sparseColumnFor returns (creating if needed) the type-erased column
// backing a SparseComponent's TypeId.
func (w *World) sparseColumnFor(id TypeId, newCol func() sparseColumn) sparseColumn {
	w.sparseMu.Lock()
	defer w.sparseMu.Unlock()
	col, ok := w.sparse[id]
	if !ok {
		col = newCol()
		w.sparse[id] = col
	}
	return col
}

// clearSparseFor removes every sparse-set value recorded for an entity
// about to be despawned.
func (w *World) clearSparseFor(e EntityID) {
	w.sparseMu.RLock()
	cols := make([]sparseColumn, 0, len(w.sparse))
	for _, c := range w.sparse {
		cols = append(cols, c)
	}
	w.sparseMu.RUnlock()
	for _, c := range cols {
		c.remove(e.Index())
	}
}

// SetSparse stores a value for entity e in a SparseComponent's column.
func SetSparse[T any](w *World, c SparseComponent[T], e EntityID, value T) {
	col := w.sparseColumnFor(c.typeID, func() sparseColumn { return newSparseColumn[T]() }).(*typedSparseColumn[T])
	col.Set(e.Index(), e.Generation(), value)
}

// GetSparse retrieves entity e's value for a SparseComponent, if present.
func GetSparse[T any](w *World, c SparseComponent[T], e EntityID) (*T, bool) {
	col := w.sparseColumnFor(c.typeID, func() sparseColumn { return newSparseColumn[T]() }).(*typedSparseColumn[T])
	v := col.Get(e.Index(), e.Generation())
	return v, v != nil
}

// RemoveSparse deletes entity e's value for a SparseComponent.
func RemoveSparse[T any](w *World, c SparseComponent[T], e EntityID) bool {
	col := w.sparseColumnFor(c.typeID, func() sparseColumn { return newSparseColumn[T]() }).(*typedSparseColumn[T])
	return col.remove(e.Index())
}

// HasSparse reports whether entity e currently has a value for c.
func HasSparse[T any](w *World, c SparseComponent[T], e EntityID) bool {
	col := w.sparseColumnFor(c.typeID, func() sparseColumn { return newSparseColumn[T]() }).(*typedSparseColumn[T])
	return col.has(e.Index(), e.Generation())
}
