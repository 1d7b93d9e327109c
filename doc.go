/*
Package depot provides the data-oriented core of an entity-component-system
(ECS) application framework: a World holding entities, typed components,
resources, events and a deferred command queue, with a TypeRegistry that
assigns dense numeric ids to stored types.

Depot keeps entities with identical component sets packed into archetype
tables for cache-friendly iteration, while components registered with the
SparseSet storage class live in per-type maps keyed by entity index instead
-- useful for components that are rare relative to the entity count.

Core concepts:

  - Entity: a generational index. A handle is valid only while its
    generation matches the allocator's current generation for that index.
  - Component: any registered type, with a declared storage class.
  - Archetype: the set of component types shared by a group of entities.
  - Resource: a process-wide singleton addressed by its type.
  - Query: a filter over archetypes, paired with a Cursor for iteration.

Basic usage:

	w := depot.NewWorld()

	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()

	entities, _ := w.Storage().NewEntities(100, position, velocity)

	query := depot.Factory.NewQuery()
	node := query.And(position, velocity)
	cursor := depot.Factory.NewCursor(node, w.Storage())

	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

The scheduler (package depot/ecs), the application/plugin layer (package
depot/app) and the asset subsystem (package depot/asset) are built on top
of this package; none of it depends on them.
*/
package depot
