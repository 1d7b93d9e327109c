package depot

import (
	"fmt"
	"iter"

	"github.com/TheBitDrifter/table"
)

// Ref is the read-only result of a Read item: a pointer into the matched
// row's component column, valid until the next structural mutation.
type Ref[T any] = *T

// OptRef is the result of an Opt item: Value is nil and Present is false
// when the matched archetype doesn't carry the component at all.
type OptRef[T any] struct {
	Value   *T
	Present bool
}

// queryItem is one slot of a typed Query's result tuple: how to fetch it
// off a Cursor mid-iteration, how to fetch it directly off an Entity for
// Get/Contains, and which components (if any) its presence implies for
// the query's archetype filter -- Opt and Has items impose no
// requirement, so an archetype missing the component still matches.
type queryItem[R any] struct {
	required   []Component
	fromCursor func(cur *Cursor) R
	fromEntity func(e Entity) R
}

// Read declares a read-only Get<T> item: the archetype must carry T.
func Read[T any](c AccessibleComponent[T]) queryItem[Ref[T]] {
	return queryItem[Ref[T]]{
		required:   []Component{c.Component},
		fromCursor: func(cur *Cursor) Ref[T] { return c.GetFromCursor(cur) },
		fromEntity: func(e Entity) Ref[T] { return c.GetFromEntity(e) },
	}
}

// MutItem declares a Mut<T> item: like Read, but every fetch stamps the
// component's Modified tick against world, per spec §4.c.
func MutItem[T any](world *World, c AccessibleComponent[T]) queryItem[Ref[T]] {
	return queryItem[Ref[T]]{
		required:   []Component{c.Component},
		fromCursor: func(cur *Cursor) Ref[T] { return c.GetMutFromCursor(world, cur) },
		fromEntity: func(e Entity) Ref[T] { return c.GetMutFromEntity(world, e) },
	}
}

// OptItem declares an Opt<T> item: T is fetched when present, without
// narrowing which archetypes the query matches.
func OptItem[T any](c AccessibleComponent[T]) queryItem[OptRef[T]] {
	return queryItem[OptRef[T]]{
		fromCursor: func(cur *Cursor) OptRef[T] {
			ok, v := c.GetFromCursorSafe(cur)
			return OptRef[T]{Value: v, Present: ok}
		},
		fromEntity: func(e Entity) OptRef[T] {
			if !c.Accessor.Check(e.Table()) {
				return OptRef[T]{}
			}
			return OptRef[T]{Value: c.GetFromEntity(e), Present: true}
		},
	}
}

// HasItem declares a Has<T> item: whether the component is present,
// without narrowing which archetypes the query matches and without ever
// touching the component's value.
func HasItem[T any](c AccessibleComponent[T]) queryItem[bool] {
	return queryItem[bool]{
		fromCursor: func(cur *Cursor) bool { return c.CheckCursor(cur) },
		fromEntity: func(e Entity) bool { return c.Accessor.Check(e.Table()) },
	}
}

// EntityItem declares an Entity item: the matched row's own handle.
func EntityItem() queryItem[Entity] {
	return queryItem[Entity]{
		fromCursor: func(cur *Cursor) Entity { e, _ := cur.CurrentEntity(); return e },
		fromEntity: func(e Entity) Entity { return e },
	}
}

// entityArchetype adapts a single entity's table.Table to the Archetype
// interface so a QueryNode built for Cursor iteration can also be
// evaluated against one arbitrary Entity, for Get and Contains. Generate
// is never called through this view; Entity rows are created through
// Storage, not by generating zero-valued rows into an ad hoc archetype.
type entityArchetype struct{ t table.Table }

func (a entityArchetype) ID() uint32         { return 0 }
func (a entityArchetype) Table() table.Table { return a.t }
func (a entityArchetype) Generate(int) error {
	return fmt.Errorf("depot: entityArchetype does not support Generate")
}

// newTypedNode folds a typed Query's required components and Filter
// terms into one QueryNode, reusing compositeNode/OpAnd from query.go
// rather than duplicating archetype-mask matching.
func newTypedNode(required []Component, filters []QueryNode) QueryNode {
	node := newCompositeNode(OpAnd, required)
	node.children = filters
	return node
}

// TypedQuery1 is spec §4.h's Query<Get<R1>, Filter<...>> for a single
// item, layered over the same Cursor and AccessibleComponent machinery
// the rest of this package already uses -- warehouse callers assemble
// cursor.Next()/component.GetFromCursor by hand; this wraps that pattern
// once behind iter/get/single/contains/empty so callers don't have to.
type TypedQuery1[R1 any] struct {
	storage Storage
	i1      queryItem[R1]
	node    QueryNode
}

// NewTypedQuery1 builds a TypedQuery1 over storage, matching archetypes
// that satisfy i1's requirement and every filter (typically With/Without
// from query.go).
func NewTypedQuery1[R1 any](storage Storage, i1 queryItem[R1], filters ...QueryNode) *TypedQuery1[R1] {
	return &TypedQuery1[R1]{
		storage: storage,
		i1:      i1,
		node:    newTypedNode(append([]Component(nil), i1.required...), filters),
	}
}

func (q *TypedQuery1[R1]) cursor() *Cursor { return newCursor(q.node, q.storage) }

// Iter returns an iterator over every matching (Entity, R1) pair.
func (q *TypedQuery1[R1]) Iter() iter.Seq2[Entity, R1] {
	return func(yield func(Entity, R1) bool) {
		cur := q.cursor()
		for cur.Next() {
			e, err := cur.CurrentEntity()
			if err != nil {
				continue
			}
			if !yield(e, q.i1.fromCursor(cur)) {
				cur.Reset()
				return
			}
		}
	}
}

// Get fetches the item for one entity, if it matches the query.
func (q *TypedQuery1[R1]) Get(e Entity) (R1, bool) {
	var zero R1
	if !q.Contains(e) {
		return zero, false
	}
	return q.i1.fromEntity(e), true
}

// Contains reports whether e's archetype matches the query.
func (q *TypedQuery1[R1]) Contains(e Entity) bool {
	return q.node.Evaluate(entityArchetype{t: e.Table()}, q.storage)
}

// Empty reports whether the query currently matches no entities.
func (q *TypedQuery1[R1]) Empty() bool {
	cur := q.cursor()
	if cur.Next() {
		cur.Reset()
		return false
	}
	return true
}

// Single returns the query's one match, or ok=false if there are zero or
// more than one.
func (q *TypedQuery1[R1]) Single() (Entity, R1, bool) {
	var zero R1
	cur := q.cursor()
	if !cur.Next() {
		return nil, zero, false
	}
	e, err := cur.CurrentEntity()
	if err != nil {
		cur.Reset()
		return nil, zero, false
	}
	v := q.i1.fromCursor(cur)
	if cur.Next() {
		cur.Reset()
		return nil, zero, false
	}
	return e, v, true
}

// TypedQuery2 is TypedQuery1's two-item counterpart. Go has no variadic
// generics, so each arity is its own type rather than one Query[...Items]
// -- the fixed-arity family is the idiomatic Go shape for this, matching
// how the rest of the ecosystem's ECS bindings expose multi-component
// queries.
type TypedQuery2[R1, R2 any] struct {
	storage Storage
	i1      queryItem[R1]
	i2      queryItem[R2]
	node    QueryNode
}

func NewTypedQuery2[R1, R2 any](storage Storage, i1 queryItem[R1], i2 queryItem[R2], filters ...QueryNode) *TypedQuery2[R1, R2] {
	required := append(append([]Component(nil), i1.required...), i2.required...)
	return &TypedQuery2[R1, R2]{storage: storage, i1: i1, i2: i2, node: newTypedNode(required, filters)}
}

func (q *TypedQuery2[R1, R2]) cursor() *Cursor { return newCursor(q.node, q.storage) }

// Each calls fn once per matching entity, stopping early if fn returns
// false.
func (q *TypedQuery2[R1, R2]) Each(fn func(Entity, R1, R2) bool) {
	cur := q.cursor()
	for cur.Next() {
		e, err := cur.CurrentEntity()
		if err != nil {
			continue
		}
		if !fn(e, q.i1.fromCursor(cur), q.i2.fromCursor(cur)) {
			cur.Reset()
			return
		}
	}
}

func (q *TypedQuery2[R1, R2]) Get(e Entity) (R1, R2, bool) {
	var z1 R1
	var z2 R2
	if !q.Contains(e) {
		return z1, z2, false
	}
	return q.i1.fromEntity(e), q.i2.fromEntity(e), true
}

func (q *TypedQuery2[R1, R2]) Contains(e Entity) bool {
	return q.node.Evaluate(entityArchetype{t: e.Table()}, q.storage)
}

func (q *TypedQuery2[R1, R2]) Empty() bool {
	cur := q.cursor()
	if cur.Next() {
		cur.Reset()
		return false
	}
	return true
}

func (q *TypedQuery2[R1, R2]) Single() (Entity, R1, R2, bool) {
	var z1 R1
	var z2 R2
	cur := q.cursor()
	if !cur.Next() {
		return nil, z1, z2, false
	}
	e, err := cur.CurrentEntity()
	if err != nil {
		cur.Reset()
		return nil, z1, z2, false
	}
	v1, v2 := q.i1.fromCursor(cur), q.i2.fromCursor(cur)
	if cur.Next() {
		cur.Reset()
		return nil, z1, z2, false
	}
	return e, v1, v2, true
}

// TypedQuery3 is TypedQuery1's three-item counterpart.
type TypedQuery3[R1, R2, R3 any] struct {
	storage Storage
	i1      queryItem[R1]
	i2      queryItem[R2]
	i3      queryItem[R3]
	node    QueryNode
}

func NewTypedQuery3[R1, R2, R3 any](storage Storage, i1 queryItem[R1], i2 queryItem[R2], i3 queryItem[R3], filters ...QueryNode) *TypedQuery3[R1, R2, R3] {
	required := append(append(append([]Component(nil), i1.required...), i2.required...), i3.required...)
	return &TypedQuery3[R1, R2, R3]{storage: storage, i1: i1, i2: i2, i3: i3, node: newTypedNode(required, filters)}
}

func (q *TypedQuery3[R1, R2, R3]) cursor() *Cursor { return newCursor(q.node, q.storage) }

func (q *TypedQuery3[R1, R2, R3]) Each(fn func(Entity, R1, R2, R3) bool) {
	cur := q.cursor()
	for cur.Next() {
		e, err := cur.CurrentEntity()
		if err != nil {
			continue
		}
		if !fn(e, q.i1.fromCursor(cur), q.i2.fromCursor(cur), q.i3.fromCursor(cur)) {
			cur.Reset()
			return
		}
	}
}

func (q *TypedQuery3[R1, R2, R3]) Get(e Entity) (R1, R2, R3, bool) {
	var z1 R1
	var z2 R2
	var z3 R3
	if !q.Contains(e) {
		return z1, z2, z3, false
	}
	return q.i1.fromEntity(e), q.i2.fromEntity(e), q.i3.fromEntity(e), true
}

func (q *TypedQuery3[R1, R2, R3]) Contains(e Entity) bool {
	return q.node.Evaluate(entityArchetype{t: e.Table()}, q.storage)
}

func (q *TypedQuery3[R1, R2, R3]) Empty() bool {
	cur := q.cursor()
	if cur.Next() {
		cur.Reset()
		return false
	}
	return true
}

func (q *TypedQuery3[R1, R2, R3]) Single() (Entity, R1, R2, R3, bool) {
	var z1 R1
	var z2 R2
	var z3 R3
	cur := q.cursor()
	if !cur.Next() {
		return nil, z1, z2, z3, false
	}
	e, err := cur.CurrentEntity()
	if err != nil {
		cur.Reset()
		return nil, z1, z2, z3, false
	}
	v1, v2, v3 := q.i1.fromCursor(cur), q.i2.fromCursor(cur), q.i3.fromCursor(cur)
	if cur.Next() {
		cur.Reset()
		return nil, z1, z2, z3, false
	}
	return e, v1, v2, v3, true
}
