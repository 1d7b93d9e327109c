package depot

import (
	"reflect"
	"sync"
)

// TypeId is a dense, process-wide identifier assigned to a Go type the
// first time it is seen by a TypeRegistry. It is stable for the lifetime
// of the registry and is used to key resources, events, change ticks and
// sparse-set component stores.
type TypeId uint32

// TypeDescriptor records everything depot needs to know about a
// registered type: its shape (for diagnostics), how it is stored, and a
// debug name for logging. Unlike the C++ original this carries no manual
// move/drop function pointers for Table-class components -- Go's
// composite assignment and garbage collector already provide those. No
// storage class carries a drop hook; a removed SparseSet slot is zeroed
// so it releases any references it held (see sparseset.go).
type TypeDescriptor struct {
	ID           TypeId
	GoType       reflect.Type
	Size         uintptr
	Align        uintptr
	StorageClass StorageClass
	DebugName    string
}

// TypeRegistry assigns TypeIds to Go types. Registration is idempotent and
// safe for concurrent use; lookups return a pointer to a descriptor that
// outlives the registry.
type TypeRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*TypeDescriptor
	byID   []*TypeDescriptor
}

// NewTypeRegistry constructs an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byType: make(map[reflect.Type]*TypeDescriptor),
	}
}

// Register assigns (or returns the existing) TypeId for T, with the given
// storage class. Calling Register for the same type with a different
// storage class than its first registration is a programmer error and
// panics -- a type's storage class cannot change after it starts being
// used by the World.
func Register[T any](r *TypeRegistry, class StorageClass) *TypeDescriptor {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf(&zero).Elem()
	}

	r.mu.RLock()
	if desc, ok := r.byType[t]; ok {
		r.mu.RUnlock()
		if desc.StorageClass != class {
			panic("depot: type " + desc.DebugName + " re-registered with a different storage class")
		}
		return desc
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if desc, ok := r.byType[t]; ok {
		return desc
	}
	desc := &TypeDescriptor{
		ID:           TypeId(len(r.byID)),
		GoType:       t,
		Size:         t.Size(),
		Align:        uintptr(t.Align()),
		StorageClass: class,
		DebugName:    t.String(),
	}
	r.byType[t] = desc
	r.byID = append(r.byID, desc)
	return desc
}

// reflectTypeOf returns the concrete reflect.Type behind a Component
// interface value, used where a generic type parameter isn't available
// (e.g. resolving the TypeId for a component stored in an archetype's
// already-type-erased component slice).
func reflectTypeOf(c Component) reflect.Type {
	return reflect.TypeOf(c)
}

// registerConcrete is Register's non-generic counterpart, for callers
// that only have a reflect.Type in hand at runtime.
func registerConcrete(r *TypeRegistry, t reflect.Type, class StorageClass) TypeId {
	r.mu.Lock()
	defer r.mu.Unlock()
	if desc, ok := r.byType[t]; ok {
		return desc.ID
	}
	desc := &TypeDescriptor{
		ID:           TypeId(len(r.byID)),
		GoType:       t,
		Size:         t.Size(),
		Align:        uintptr(t.Align()),
		StorageClass: class,
		DebugName:    t.String(),
	}
	r.byType[t] = desc
	r.byID = append(r.byID, desc)
	return desc.ID
}

// Lookup returns the descriptor for a previously registered TypeId.
func (r *TypeRegistry) Lookup(id TypeId) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// LookupType returns the descriptor already registered for a reflect.Type,
// if any.
func (r *TypeRegistry) LookupType(t reflect.Type) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byType[t]
	return desc, ok
}

// Len reports how many distinct types have been registered.
func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
