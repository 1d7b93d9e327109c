package depot

import "github.com/TheBitDrifter/table"

// factory implements the factory pattern for depot's low-level building
// blocks, mirroring TheBitDrifter/table's own Factory.
type factory struct{}

// Factory is the global factory instance for creating depot components.
var Factory factory

// NewStorage creates Table-class storage for a World with the given
// schema. Most callers get a World's storage through NewWorld instead;
// this is exposed for tests and callers building a Storage standalone.
func (f factory) NewStorage(world *World, schema table.Schema) Storage {
	return newStorage(world, schema)
}

// NewQuery creates a new Query instance.
func (f factory) NewQuery() Query {
	return newQuery()
}

// NewCursor creates a new Cursor with the specified query and storage.
func (f factory) NewCursor(query QueryNode, storage Storage) *Cursor {
	return newCursor(query, storage)
}

// FactoryNewComponent declares T as a Table-class component and returns
// an accessor for it.
func FactoryNewComponent[T any]() AccessibleComponent[T] {
	iden := table.FactoryNewElementType[T]()
	return AccessibleComponent[T]{
		Component: iden,
		Accessor:  table.FactoryNewAccessor[T](iden),
	}
}

// FactoryNewSparseComponent declares T as a SparseSet-class component
// against a World's TypeRegistry and returns a handle for it. Unlike
// Table-class components (FactoryNewComponent), a SparseComponent handle
// is bound to one World's TypeRegistry rather than being world-agnostic,
// since its storage lives in the World itself rather than in an
// archetype table.
func FactoryNewSparseComponent[T any](world *World) SparseComponent[T] {
	desc := Register[T](world.types, StorageClassSparseSet)
	return SparseComponent[T]{typeID: desc.ID}
}

// FactoryNewCache creates a new Cache with the specified capacity. Slot 0
// is a zero-valued placeholder, so the first registered item gets index 1.
func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		items:       make([]T, 1, cap+1),
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
