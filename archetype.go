package depot

import "github.com/TheBitDrifter/table"

type archetypeID uint32

// Archetype is the storage-facing view of a unique component signature: one
// table.Table plus the bookkeeping id a Storage uses to key it in its
// mask-to-archetype map.
type Archetype interface {
	ID() uint32
	Table() table.Table
	// Generate appends n zero-valued rows to the archetype's table, with
	// no EntityID or change ticks attached.
	Generate(n int) error
}

// ArchetypeImpl is the concrete Archetype backing Table-class storage.
type ArchetypeImpl struct {
	id    archetypeID
	table table.Table
}

func newArchetype(schema table.Schema, entryIndex table.EntryIndex, id archetypeID, events table.TableEvents, components ...Component) (ArchetypeImpl, error) {
	elementTypes := make([]table.ElementType, len(components))
	for i, comp := range components {
		elementTypes[i] = comp
	}
	tbl, err := table.NewTableBuilder().
		WithSchema(schema).
		WithEntryIndex(entryIndex).
		WithElementTypes(elementTypes...).
		WithEvents(events).
		Build()
	if err != nil {
		return ArchetypeImpl{}, err
	}
	return ArchetypeImpl{
		table: tbl,
		id:    id,
	}, nil
}

func (a ArchetypeImpl) ID() uint32 {
	return uint32(a.id)
}

func (a ArchetypeImpl) Table() table.Table {
	return a.table
}

func (a ArchetypeImpl) Generate(n int) error {
	_, err := a.table.NewEntries(n)
	return err
}
