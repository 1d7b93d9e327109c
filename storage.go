package depot

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

// cursorLockBit is the storage lock bit a Cursor holds for the duration of
// its iteration, deferring structural mutation to the operation queue
// until iteration finishes. It is a fixed, reserved bit distinct from
// whatever bits a schedule dispatcher (package depot/ecs) assigns to
// concurrently-running systems, reconciling warehouse's Cursor (which
// calls storage.AddLock()/PopLock() with no argument) with Storage's
// per-bit lock API.
const cursorLockBit uint32 = 255

// Storage is the per-World archetype/table storage for Table-class
// components. Adapted from TheBitDrifter/warehouse's storage.go: the
// archetype/table mechanics (NewOrExistingArchetype, swap-remove via
// table.Table.TransferEntries/DeleteEntries) are kept, but entity
// bookkeeping goes through the owning World's EntityAllocator instead of
// a package-level global slice, so more than one World can exist at once.
type Storage interface {
	Entity(id EntityID) (Entity, error)
	NewEntities(n int, components ...Component) ([]Entity, error)
	NewOrExistingArchetype(components ...Component) (Archetype, error)
	EnqueueNewEntities(n int, components ...Component) error
	DestroyEntities(entities ...Entity) error
	EnqueueDestroyEntities(entities ...Entity) error
	RowIndexFor(Component) uint32
	Locked() bool
	AddLock(bit uint32)
	RemoveLock(bit uint32)
	Register(...Component)
	TransferEntities(target Storage, entities ...Entity) error
	Enqueue(EntityOperation)
	Archetypes() []ArchetypeImpl
	tableFor(...Component) (table.Table, error)
	entityForEntry(table.Entry) (Entity, error)
}

var _ Storage = &storage{}

// storage implements Storage.
type storage struct {
	world          *World
	schema         table.Schema
	entryIndex     table.EntryIndex
	locks          mask.Mask256
	archetypes     *archetypeSet
	operationQueue EntityOperationsQueue

	byIdent map[uint32]*entity      // keyed by EntityID.Index()
	byEntry map[table.EntryID]*entity
}

// archetypeSet tracks every archetype created for a storage and the mask
// index used to find one by component signature.
type archetypeSet struct {
	nextID           archetypeID
	asSlice          []ArchetypeImpl
	idsGroupedByMask map[mask.Mask]archetypeID
}

// newStorage creates Table-class storage bound to world.
func newStorage(world *World, schema table.Schema) Storage {
	return &storage{
		world:      world,
		schema:     schema,
		entryIndex: table.Factory.NewEntryIndex(),
		archetypes: &archetypeSet{
			nextID:           1,
			idsGroupedByMask: make(map[mask.Mask]archetypeID),
		},
		operationQueue: &entityOperationsQueue{},
		byIdent:        make(map[uint32]*entity),
		byEntry:        make(map[table.EntryID]*entity),
	}
}

// Entity retrieves the rich handle for a previously allocated EntityID.
func (sto *storage) Entity(id EntityID) (Entity, error) {
	en, ok := sto.byIdent[id.Index()]
	if !ok || en.eid.Generation() != id.Generation() {
		return nil, ErrEntityNotFound
	}
	return en, nil
}

// entityForEntry resolves the rich handle for a table.Entry obtained by a
// Cursor, which only knows physical row position, not EntityID.
func (sto *storage) entityForEntry(entry table.Entry) (Entity, error) {
	en, ok := sto.byEntry[entry.ID()]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return en, nil
}

func (sto *storage) register(en *entity) {
	sto.byIdent[en.eid.Index()] = en
	sto.byEntry[en.Entry.ID()] = en
}

func (sto *storage) unregister(en *entity) {
	delete(sto.byIdent, en.eid.Index())
	delete(sto.byEntry, en.Entry.ID())
}

// NewOrExistingArchetype gets or creates the archetype for a component set.
func (sto *storage) NewOrExistingArchetype(components ...Component) (Archetype, error) {
	var entityMask mask.Mask
	for _, component := range components {
		sto.schema.Register(component)
		bit := sto.schema.RowIndexFor(component)
		entityMask.Mark(bit)
	}
	id, found := sto.archetypes.idsGroupedByMask[entityMask]
	if found {
		return sto.archetypes.asSlice[id-1], nil
	}

	created, err := newArchetype(sto.schema, sto.entryIndex, sto.archetypes.nextID, sto.world.tableEvents, components...)
	if err != nil {
		return nil, err
	}
	sto.archetypes.asSlice = append(sto.archetypes.asSlice, created)
	sto.archetypes.idsGroupedByMask[entityMask] = created.id
	sto.archetypes.nextID++
	return created, nil
}

// NewEntities allocates n entities directly, bypassing the operation
// queue. Fails with LockedStorageError while the storage is locked.
func (sto *storage) NewEntities(n int, components ...Component) ([]Entity, error) {
	if sto.Locked() {
		return nil, LockedStorageError{Bits: sto.locks.Value()}
	}
	arche, err := sto.NewOrExistingArchetype(components...)
	if err != nil {
		return nil, err
	}
	archeImpl := arche.(ArchetypeImpl)

	entries, err := archeImpl.table.NewEntries(n)
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, n)
	for i, row := range entries {
		eid := sto.world.entities.Alloc()
		sto.world.entities.SetLocation(eid, Location{Archetype: uint32(archeImpl.id), Row: row.Index()})
		en := &entity{
			Entry:      row,
			eid:        eid,
			sto:        sto,
			components: append([]Component(nil), components...),
		}
		sto.register(en)
		entities[i] = en
		sto.world.stampInsert(archeImpl.table, row.Index(), components)
	}
	return entities, nil
}

// RowIndexFor returns the schema bit index for a registered component.
func (sto *storage) RowIndexFor(c Component) uint32 {
	return sto.schema.RowIndexFor(c)
}

// Locked reports whether any lock bit is currently held.
func (sto *storage) Locked() bool {
	return !sto.locks.IsEmpty()
}

func (sto *storage) AddLock(bit uint32) {
	sto.locks.Mark(bit)
}

// RemoveLock releases a lock bit and, once every bit is clear, drains the
// operation queue.
func (sto *storage) RemoveLock(bit uint32) {
	sto.locks.Unmark(bit)
	if sto.locks.IsEmpty() {
		if err := sto.operationQueue.ProcessAll(sto); err != nil {
			panic(bark.AddTrace(fmt.Errorf("depot: error processing queued operations: %w", err)))
		}
	}
}

// EnqueueNewEntities creates immediately if unlocked, else defers.
func (sto *storage) EnqueueNewEntities(n int, components ...Component) error {
	if !sto.Locked() {
		_, err := sto.NewEntities(n, components...)
		return err
	}
	sto.operationQueue.Enqueue(NewEntityOperation{count: n, components: components})
	return nil
}

// DestroyEntities removes entities from storage and releases their ids.
func (sto *storage) DestroyEntities(entities ...Entity) error {
	if sto.Locked() {
		return LockedStorageError{Bits: sto.locks.Value()}
	}
	tableGroups := make(map[table.Table][]int)
	for _, e := range entities {
		if e == nil {
			continue
		}
		tableGroups[e.Table()] = append(tableGroups[e.Table()], e.Index())
	}
	for tbl, idxs := range tableGroups {
		if _, err := tbl.DeleteEntries(idxs...); err != nil {
			return fmt.Errorf("depot: failed to delete entries: %w", err)
		}
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		en, ok := e.(*entity)
		if !ok {
			continue
		}
		sto.world.clearSparseFor(en.eid)
		sto.world.clearTicksFor(en.Table(), en.Index())
		sto.unregister(en)
		sto.world.entities.Free(en.eid)
	}
	return nil
}

// EnqueueDestroyEntities destroys immediately if unlocked, else defers.
func (sto *storage) EnqueueDestroyEntities(entities ...Entity) error {
	if !sto.Locked() {
		return sto.DestroyEntities(entities...)
	}
	for _, en := range entities {
		sto.operationQueue.Enqueue(DestroyEntityOperation{entity: en, recycled: en.Recycled()})
	}
	return nil
}

// TransferEntities moves entities from this storage to target.
func (sto *storage) TransferEntities(target Storage, entities ...Entity) error {
	if sto.Locked() {
		return LockedStorageError{Bits: sto.locks.Value()}
	}
	for _, en := range entities {
		comps := en.Components()
		target.Register(comps...)
		targetTbl, err := target.tableFor(comps...)
		if err != nil {
			return err
		}
		if err := en.Table().TransferEntries(targetTbl, en.Index()); err != nil {
			return err
		}
		en.SetStorage(target)
		if e, ok := en.(*entity); ok {
			sto.unregister(e)
			if targetSto, ok := target.(*storage); ok {
				targetSto.register(e)
			}
		}
	}
	return nil
}

// Register adds components to the storage schema without creating an
// archetype for them.
func (sto *storage) Register(comps ...Component) {
	ets := make([]table.ElementType, len(comps))
	for i, c := range comps {
		ets[i] = c
	}
	sto.schema.Register(ets...)
}

// Enqueue adds an operation to the deferred queue.
func (sto *storage) Enqueue(op EntityOperation) {
	sto.operationQueue.Enqueue(op)
}

// Archetypes returns every archetype known to this storage.
func (sto *storage) Archetypes() []ArchetypeImpl {
	return sto.archetypes.asSlice
}

// tableFor gets or creates the table.Table for a component set.
func (sto *storage) tableFor(comps ...Component) (table.Table, error) {
	arche, err := sto.NewOrExistingArchetype(comps...)
	if err != nil {
		return nil, err
	}
	return arche.Table(), nil
}
