package depot

import "github.com/TheBitDrifter/table"

// AccessibleComponent extends a base Component with table-based accessibility.
// It provides methods to retrieve components using different access patterns.
type AccessibleComponent[T any] struct {
	Component
	table.Accessor[T] // concrete.
}

// GetFromCursor retrieves a component value for the entity at the cursor position.
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	return c.Get(
		cursor.entityIndex-1,
		cursor.currentArchetype.table,
	)
}

// GetFromCursorSafe safely retrieves a component value, checking if the component exists.
// Returns a boolean indicating success and the component pointer if found.
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	ok := c.Accessor.Check(cursor.currentArchetype.table)
	if ok {
		return true, c.GetFromCursor(cursor)
	}
	return false, nil
}

// CheckCursor determines if the component exists in the archetype at the cursor position.
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	return c.Accessor.Check(cursor.currentArchetype.table)
}

// GetFromEntity retrieves a component value for the specified entity.
func (c AccessibleComponent[T]) GetFromEntity(entity Entity) *T {
	return c.Get(entity.Index(), entity.Table())
}

// GetMutFromCursor is GetFromCursor's change-tracked counterpart: it
// stamps the component's Modified tick against world before returning the
// pointer, so a later ChangedSinceFromCursor check observes this schedule run even if
// the caller only reads through the returned pointer. Has no warehouse
// precedent -- warehouse predates per-component change detection.
func (c AccessibleComponent[T]) GetMutFromCursor(world *World, cursor *Cursor) *T {
	v := c.GetFromCursor(cursor)
	typ := componentTypeID(world.types, c.Component)
	world.markModified(cursor.currentArchetype.table, cursor.entityIndex-1, typ)
	return v
}

// GetMutFromEntity is GetFromEntity's change-tracked counterpart.
func (c AccessibleComponent[T]) GetMutFromEntity(world *World, entity Entity) *T {
	v := c.GetFromEntity(entity)
	typ := componentTypeID(world.types, c.Component)
	world.markModified(entity.Table(), entity.Index(), typ)
	return v
}

// ChangedSinceFromCursor reports whether the component at the cursor's
// current position has been modified (inserted counts as modified) since
// the given tick, per spec §4.c change detection.
func (c AccessibleComponent[T]) ChangedSinceFromCursor(world *World, cursor *Cursor, since uint32) bool {
	typ := componentTypeID(world.types, c.Component)
	ct, ok := world.ticksFor(cursor.currentArchetype.table, cursor.entityIndex-1, typ)
	if !ok {
		return false
	}
	return ct.Modified >= since
}

// AddedSinceFromCursor reports whether the component at the cursor's
// current position was inserted since the given tick.
func (c AccessibleComponent[T]) AddedSinceFromCursor(world *World, cursor *Cursor, since uint32) bool {
	typ := componentTypeID(world.types, c.Component)
	ct, ok := world.ticksFor(cursor.currentArchetype.table, cursor.entityIndex-1, typ)
	if !ok {
		return false
	}
	return ct.Added >= since
}
