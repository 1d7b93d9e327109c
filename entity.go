package depot

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/TheBitDrifter/table"
)

var _ Entity = &entity{}

// Entity is the ergonomic, component-aware handle callers hold and pass
// around: it wraps a table.Entry (for physical row access) together with
// depot's own generational EntityID (for identity that survives the row
// moving between archetypes) and hierarchy bookkeeping. Kept close to
// TheBitDrifter/warehouse's Entity interface; the identifier plumbing
// underneath is new (see entityalloc.go).
type Entity interface {
	table.Entry

	// Ident returns the stable generational id backing this handle,
	// independent of which archetype table currently holds its row.
	Ident() EntityID

	SetParent(parent Entity, callback EntityDestroyCallback) error
	Parent() Entity

	SetDestroyCallback(EntityDestroyCallback) error

	AddComponent(Component) error
	AddComponentWithValue(Component, any) error
	RemoveComponent(Component) error

	EnqueueAddComponent(Component) error
	EnqueueAddComponentWithValue(Component, any) error
	EnqueueRemoveComponent(Component) error

	Components() []Component
	ComponentsAsString() string

	Valid() bool
	Storage() Storage
	SetStorage(Storage)
}

// EntityDestroyCallback is invoked when an entity is destroyed.
type EntityDestroyCallback func(Entity)

// entity implements Entity. Unlike warehouse's entity struct, it embeds
// table.Entry directly and relies on Go's method promotion for
// ID/Index/Recycled/Table instead of re-deriving them through a
// package-level EntryIndex lookup -- depot supports more than one World
// at a time, so that global had to go (see DESIGN.md).
type entity struct {
	table.Entry
	eid           EntityID
	sto           Storage
	relationships relationships
	components    []Component
}

type relationships struct {
	recycled  int
	parent    Entity
	onDestroy EntityDestroyCallback
}

// Ident returns the entity's generational id.
func (e *entity) Ident() EntityID { return e.eid }

// Storage returns the storage this entity currently belongs to.
func (e *entity) Storage() Storage { return e.sto }

// SetParent establishes a parent-child relationship with another entity.
func (e *entity) SetParent(parent Entity, callback EntityDestroyCallback) error {
	if e.relationships.parent != nil {
		return EntityRelationError{Child: e, Parent: parent}
	}
	e.relationships.parent = parent
	e.relationships.recycled = parent.Recycled()
	return parent.SetDestroyCallback(callback)
}

// Parent returns the parent entity, or nil if it has since been recycled.
func (e *entity) Parent() Entity {
	if e.relationships.parent == nil {
		return nil
	}
	if e.relationships.parent.Recycled() != e.relationships.recycled {
		return nil
	}
	return e.relationships.parent
}

// SetDestroyCallback sets the callback invoked when this entity is destroyed.
func (e *entity) SetDestroyCallback(callback EntityDestroyCallback) error {
	e.relationships.onDestroy = callback
	return nil
}

func (e *entity) worldOf() *World {
	st, ok := e.sto.(*storage)
	if !ok {
		return nil
	}
	return st.world
}

// relocate updates the owning World's entity-location record and stamps
// change ticks for the full post-transfer component set, after a row has
// physically moved to a new archetype table.
func (e *entity) relocate(arche Archetype) {
	impl := arche.(ArchetypeImpl)
	if w := e.worldOf(); w != nil {
		w.entities.SetLocation(e.eid, Location{Archetype: uint32(impl.id), Row: e.Index()})
		w.stampInsert(impl.table, e.Index(), e.components)
	}
}

// AddComponent adds a component to the entity, moving it to a new
// archetype if needed.
func (e *entity) AddComponent(c Component) error {
	if e.sto.Locked() {
		return LockedStorageError{}
	}
	originTable := e.Table()
	if originTable.Contains(c) {
		return nil
	}
	for _, comp := range e.components {
		if comp.ID() == c.ID() {
			return nil
		}
	}
	e.components = append(e.components, c)
	destArchetype, err := e.sto.NewOrExistingArchetype(e.components...)
	if err != nil {
		return err
	}
	if err := originTable.TransferEntries(destArchetype.Table(), e.Index()); err != nil {
		return err
	}
	e.relocate(destArchetype)
	return nil
}

// AddComponentWithValue adds a component with an explicit initial value.
func (e *entity) AddComponentWithValue(c Component, value any) error {
	if e.sto.Locked() {
		return LockedStorageError{}
	}
	originTable := e.Table()
	if originTable.Contains(c) {
		return nil
	}
	for _, comp := range e.components {
		if comp.ID() == c.ID() {
			return nil
		}
	}
	e.components = append(e.components, c)
	destArchetype, err := e.sto.NewOrExistingArchetype(e.components...)
	if err != nil {
		return err
	}
	if err := originTable.TransferEntries(destArchetype.Table(), e.Index()); err != nil {
		return err
	}
	e.relocate(destArchetype)

	valueType := reflect.TypeOf(value)
	for _, row := range destArchetype.Table().Rows() {
		if row.Type().Elem() == valueType {
			reflect.Value(row).Index(e.Index()).Set(reflect.ValueOf(value))
			return nil
		}
	}
	return fmt.Errorf("depot: invalid value type %v for component %v", valueType, c.Type())
}

// RemoveComponent removes a component from the entity, moving it to a new
// archetype.
func (e *entity) RemoveComponent(c Component) error {
	if e.sto.Locked() {
		return LockedStorageError{}
	}
	originTable := e.Table()
	if !originTable.Contains(c) {
		return nil
	}
	newComps := make([]Component, 0, len(e.components))
	for _, comp := range e.components {
		if comp.ID() != c.ID() {
			newComps = append(newComps, comp)
		}
	}
	e.components = newComps
	destArchetype, err := e.sto.NewOrExistingArchetype(newComps...)
	if err != nil {
		return fmt.Errorf("depot: failed to get/create archetype: %w", err)
	}
	if err := originTable.TransferEntries(destArchetype.Table(), e.Index()); err != nil {
		return fmt.Errorf("depot: failed to transfer entity: %w", err)
	}
	e.relocate(destArchetype)
	return nil
}

// EnqueueAddComponent queues a component addition, or applies it
// immediately if storage isn't locked.
func (e *entity) EnqueueAddComponent(c Component) error {
	if !e.sto.Locked() {
		return e.AddComponent(c)
	}
	e.sto.Enqueue(AddComponentOperation{entity: e, recycled: e.Recycled(), component: c, storage: e.sto})
	return nil
}

// EnqueueAddComponentWithValue queues a component addition with value, or
// applies it immediately if storage isn't locked.
func (e *entity) EnqueueAddComponentWithValue(c Component, val any) error {
	if !e.sto.Locked() {
		return e.AddComponentWithValue(c, val)
	}
	e.sto.Enqueue(AddComponentOperation{entity: e, recycled: e.Recycled(), component: c, value: val, storage: e.sto})
	return nil
}

// EnqueueRemoveComponent queues a component removal, or applies it
// immediately if storage isn't locked.
func (e *entity) EnqueueRemoveComponent(c Component) error {
	if !e.sto.Locked() {
		return e.RemoveComponent(c)
	}
	e.sto.Enqueue(RemoveComponentOperation{entity: e, recycled: e.Recycled(), component: c, storage: e.sto})
	return nil
}

// Components returns every component attached to this entity.
func (e *entity) Components() []Component { return e.components }

// ComponentsAsString returns a sorted, formatted string of component names.
func (e *entity) ComponentsAsString() string {
	if len(e.components) == 0 {
		return "[]"
	}
	names := make([]string, 0, len(e.components))
	for _, c := range e.components {
		typeName := strings.TrimPrefix(reflect.TypeOf(c).String(), "*")
		parts := strings.Split(typeName, ".")
		name := strings.TrimSuffix(parts[len(parts)-1], "]")
		names = append(names, name)
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}

// Valid reports whether the entity's id is still live in its World's
// EntityAllocator.
func (e *entity) Valid() bool {
	if e.sto == nil {
		return false
	}
	w := e.worldOf()
	if w == nil {
		return true
	}
	return w.entities.Contains(e.eid)
}

// SetStorage sets the storage this entity belongs to.
func (e *entity) SetStorage(sto Storage) { e.sto = sto }
