package depot

// Access declares, for one system, which component types it reads and
// writes (Table-class and SparseSet-class alike, addressed by TypeId so
// both storage classes share one accounting) and which resource types it
// reads and writes, plus two "reads/writes everything" escape hatches for
// systems whose access can't be enumerated ahead of time (exclusive
// systems, reflection-driven tooling). A dispatcher (package depot/ecs)
// uses Access to decide which systems may run in the same batch: per
// spec §4.h, two systems are compatible only if neither writes a type the
// other reads or writes.
//
// There is no warehouse precedent for this -- warehouse callers run
// queries by hand with no scheduler above them -- so Access is modeled
// directly on bevy_ecs's access.rs, expressed as a same-World type
// alongside Query/Storage rather than a standalone package.
type Access struct {
	ComponentReads  []TypeId
	ComponentWrites []TypeId
	ResourceReads   []TypeId
	ResourceWrites  []TypeId

	ReadsAllComponents  bool
	WritesAllComponents bool
	ReadsAllResources   bool
	WritesAllResources  bool

	// WithFilters and WithoutFilters record a system's Query Filter<...>
	// terms by TypeId. They never add to ComponentReads/ComponentWrites --
	// a filter component's presence or absence is all a system inspects,
	// never its value -- but componentsCompatible uses them to refine an
	// apparent write/write or write/read conflict: per spec §4.h, two
	// systems whose component access overlaps are still schedulable
	// concurrently if their filter sets are pairwise disjoint, since no
	// single archetype can ever satisfy both (a With<X> query can never
	// alias a Without<X> query).
	WithFilters    []TypeId
	WithoutFilters []TypeId
}

func containsID(ids []TypeId, id TypeId) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// intersectIDs returns the ids present in both a and b, used by Merge to
// keep only filter terms every merged member agrees on.
func intersectIDs(a, b []TypeId) []TypeId {
	var out []TypeId
	for _, id := range a {
		if containsID(b, id) {
			out = append(out, id)
		}
	}
	return out
}

func disjointIDs(reads, writes []TypeId) bool {
	for _, w := range writes {
		if containsID(reads, w) {
			return false
		}
	}
	return true
}

// filtersDisjoint reports whether a and b provably never match the same
// archetype, because one requires (With) a type the other excludes
// (Without). Whole-archetype escape hatches (ReadsAllComponents etc.)
// aren't refined by this -- a system declaring "touches everything" can't
// be narrowed by a filter it never expressed.
func filtersDisjoint(a, b Access) bool {
	for _, id := range a.WithFilters {
		if containsID(b.WithoutFilters, id) {
			return true
		}
	}
	for _, id := range b.WithFilters {
		if containsID(a.WithoutFilters, id) {
			return true
		}
	}
	return false
}

// componentsCompatible reports whether a's and b's component access can
// run concurrently: neither may write a type the other reads or writes,
// unless their Filter terms prove they can never share an archetype.
func (a Access) componentsCompatible(b Access) bool {
	if a.WritesAllComponents && (b.ReadsAllComponents || b.WritesAllComponents || len(b.ComponentReads) > 0 || len(b.ComponentWrites) > 0) {
		return false
	}
	if b.WritesAllComponents && (a.ReadsAllComponents || a.WritesAllComponents || len(a.ComponentReads) > 0 || len(a.ComponentWrites) > 0) {
		return false
	}
	if a.ReadsAllComponents && len(b.ComponentWrites) > 0 {
		return false
	}
	if b.ReadsAllComponents && len(a.ComponentWrites) > 0 {
		return false
	}
	if filtersDisjoint(a, b) {
		return true
	}
	if !disjointIDs(a.ComponentReads, b.ComponentWrites) {
		return false
	}
	if !disjointIDs(b.ComponentReads, a.ComponentWrites) {
		return false
	}
	if !disjointIDs(a.ComponentWrites, b.ComponentWrites) {
		return false
	}
	return true
}

// resourcesCompatible mirrors componentsCompatible for resource access.
func (a Access) resourcesCompatible(b Access) bool {
	if a.WritesAllResources && (b.ReadsAllResources || b.WritesAllResources || len(b.ResourceReads) > 0 || len(b.ResourceWrites) > 0) {
		return false
	}
	if b.WritesAllResources && (a.ReadsAllResources || a.WritesAllResources || len(a.ResourceReads) > 0 || len(a.ResourceWrites) > 0) {
		return false
	}
	if a.ReadsAllResources && len(b.ResourceWrites) > 0 {
		return false
	}
	if b.ReadsAllResources && len(a.ResourceWrites) > 0 {
		return false
	}
	if !disjointIDs(a.ResourceReads, b.ResourceWrites) {
		return false
	}
	if !disjointIDs(b.ResourceReads, a.ResourceWrites) {
		return false
	}
	if !disjointIDs(a.ResourceWrites, b.ResourceWrites) {
		return false
	}
	return true
}

// Compatible reports whether a and b may run in the same dispatch batch.
func (a Access) Compatible(b Access) bool {
	return a.componentsCompatible(b) && a.resourcesCompatible(b)
}

// Merge returns the union of a and b's access, used when folding a
// SystemSet's member accesses into one descriptor for scheduling.
func (a Access) Merge(b Access) Access {
	out := Access{
		ComponentReads:      append(append([]TypeId(nil), a.ComponentReads...), b.ComponentReads...),
		ComponentWrites:     append(append([]TypeId(nil), a.ComponentWrites...), b.ComponentWrites...),
		ResourceReads:       append(append([]TypeId(nil), a.ResourceReads...), b.ResourceReads...),
		ResourceWrites:      append(append([]TypeId(nil), a.ResourceWrites...), b.ResourceWrites...),
		ReadsAllComponents:  a.ReadsAllComponents || b.ReadsAllComponents,
		WritesAllComponents: a.WritesAllComponents || b.WritesAllComponents,
		ReadsAllResources:   a.ReadsAllResources || b.ReadsAllResources,
		WritesAllResources:  a.WritesAllResources || b.WritesAllResources,
		// A merged SystemSet access keeps only filter terms every member
		// shares -- one member's With<X> doesn't make the set's combined
		// access disjoint from anything unless every member agrees.
		WithFilters:    intersectIDs(a.WithFilters, b.WithFilters),
		WithoutFilters: intersectIDs(a.WithoutFilters, b.WithoutFilters),
	}
	return out
}

// AccessBuilder incrementally constructs an Access descriptor against a
// TypeRegistry, so callers declare reads/writes by Go type rather than by
// raw TypeId.
type AccessBuilder struct {
	types *TypeRegistry
	acc   Access
}

// NewAccessBuilder starts an empty builder bound to a TypeRegistry.
func NewAccessBuilder(types *TypeRegistry) *AccessBuilder {
	return &AccessBuilder{types: types}
}

// ReadsComponent declares a read of component type T.
func ReadsComponent[T any](b *AccessBuilder) *AccessBuilder {
	desc := Register[T](b.types, StorageClassTable)
	b.acc.ComponentReads = append(b.acc.ComponentReads, desc.ID)
	return b
}

// WritesComponent declares a write of component type T.
func WritesComponent[T any](b *AccessBuilder) *AccessBuilder {
	desc := Register[T](b.types, StorageClassTable)
	b.acc.ComponentWrites = append(b.acc.ComponentWrites, desc.ID)
	return b
}

// ReadsResource declares a read of resource type T.
func ReadsResource[T any](b *AccessBuilder) *AccessBuilder {
	desc := Register[T](b.types, StorageClassTable)
	b.acc.ResourceReads = append(b.acc.ResourceReads, desc.ID)
	return b
}

// WritesResource declares a write of resource type T.
func WritesResource[T any](b *AccessBuilder) *AccessBuilder {
	desc := Register[T](b.types, StorageClassTable)
	b.acc.ResourceWrites = append(b.acc.ResourceWrites, desc.ID)
	return b
}

// WithFilter records that this system's query carries a With<T> filter
// term, for componentsCompatible's disjointness refinement. It does not
// add T to ComponentReads: a With filter only narrows which archetypes
// match, it never touches T's value.
func WithFilter[T any](b *AccessBuilder) *AccessBuilder {
	desc := Register[T](b.types, StorageClassTable)
	b.acc.WithFilters = append(b.acc.WithFilters, desc.ID)
	return b
}

// WithoutFilter records that this system's query carries a Without<T>
// filter term, WithFilter's counterpart.
func WithoutFilter[T any](b *AccessBuilder) *AccessBuilder {
	desc := Register[T](b.types, StorageClassTable)
	b.acc.WithoutFilters = append(b.acc.WithoutFilters, desc.ID)
	return b
}

// ReadsAllComponents marks the access as touching every component type,
// for systems (e.g. exclusive world-scope systems) whose reads can't be
// enumerated ahead of time.
func (b *AccessBuilder) ReadsAllComponents() *AccessBuilder {
	b.acc.ReadsAllComponents = true
	return b
}

// WritesAllComponents is ReadsAllComponents' write-side counterpart.
func (b *AccessBuilder) WritesAllComponents() *AccessBuilder {
	b.acc.WritesAllComponents = true
	return b
}

// ReadsAllResources marks the access as touching every resource type.
func (b *AccessBuilder) ReadsAllResources() *AccessBuilder {
	b.acc.ReadsAllResources = true
	return b
}

// WritesAllResources is ReadsAllResources' write-side counterpart.
func (b *AccessBuilder) WritesAllResources() *AccessBuilder {
	b.acc.WritesAllResources = true
	return b
}

// Build returns the constructed Access.
func (b *AccessBuilder) Build() Access { return b.acc }
