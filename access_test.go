package depot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessBuilderReadsAreCompatibleWithEachOther(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	ReadsComponent[Position](a)

	b := NewAccessBuilder(types)
	ReadsComponent[Position](b)

	require.True(t, a.Build().Compatible(b.Build()))
}

func TestAccessBuilderWriteConflictsWithRead(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WritesComponent[Position](a)

	b := NewAccessBuilder(types)
	ReadsComponent[Position](b)

	require.False(t, a.Build().Compatible(b.Build()))
	require.False(t, b.Build().Compatible(a.Build()), "Compatible must be symmetric")
}

func TestAccessBuilderWriteConflictsWithWrite(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WritesComponent[Position](a)

	b := NewAccessBuilder(types)
	WritesComponent[Position](b)

	require.False(t, a.Build().Compatible(b.Build()))
}

func TestAccessBuilderDisjointTypesAreCompatible(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WritesComponent[Position](a)

	b := NewAccessBuilder(types)
	WritesComponent[Velocity](b)

	require.True(t, a.Build().Compatible(b.Build()))
}

func TestAccessWritesAllComponentsConflictsWithAnyAccess(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	a.WritesAllComponents()

	b := NewAccessBuilder(types)
	ReadsComponent[Position](b)

	require.False(t, a.Build().Compatible(b.Build()))
	require.False(t, b.Build().Compatible(a.Build()))
}

func TestAccessResourceReadWriteFollowsSameRules(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WritesResource[gameTimer](a)

	b := NewAccessBuilder(types)
	ReadsResource[gameTimer](b)

	require.False(t, a.Build().Compatible(b.Build()))
}

func TestAccessMergeUnionsReadsAndWrites(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	ReadsComponent[Position](a)

	b := NewAccessBuilder(types)
	WritesComponent[Velocity](b)

	merged := a.Build().Merge(b.Build())
	require.Len(t, merged.ComponentReads, 1)
	require.Len(t, merged.ComponentWrites, 1)
}

func TestAccessFilterDisjointWriteConflictBecomesCompatible(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WritesComponent[Position](a)
	WithFilter[Velocity](a)

	b := NewAccessBuilder(types)
	WritesComponent[Position](b)
	WithoutFilter[Velocity](b)

	require.True(t, a.Build().Compatible(b.Build()), "With<Velocity> and Without<Velocity> can never share an archetype")
	require.True(t, b.Build().Compatible(a.Build()), "Compatible must be symmetric")
}

func TestAccessFilterOverlapLeavesWriteConflictIncompatible(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WritesComponent[Position](a)
	WithFilter[Velocity](a)

	b := NewAccessBuilder(types)
	WritesComponent[Position](b)
	WithFilter[Velocity](b)

	require.False(t, a.Build().Compatible(b.Build()), "two With<Velocity> queries can share an archetype")
}

func TestAccessWritesAllComponentsIgnoresFilterDisjointness(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	a.WritesAllComponents()
	WithFilter[Velocity](a)

	b := NewAccessBuilder(types)
	ReadsComponent[Position](b)
	WithoutFilter[Velocity](b)

	require.False(t, a.Build().Compatible(b.Build()), "a whole-archetype writer can't be narrowed by a filter it never expressed")
}

func TestAccessMergeKeepsOnlyFiltersSharedByBothMembers(t *testing.T) {
	types := NewTypeRegistry()
	a := NewAccessBuilder(types)
	WithFilter[Velocity](a)

	b := NewAccessBuilder(types)

	merged := a.Build().Merge(b.Build())
	require.Empty(t, merged.WithFilters)
}

func TestEmptyAccessIsCompatibleWithEverything(t *testing.T) {
	types := NewTypeRegistry()
	empty := Access{}

	b := NewAccessBuilder(types)
	b.WritesAllComponents().WritesAllResources()

	require.True(t, empty.Compatible(b.Build()))
	require.True(t, b.Build().Compatible(empty))
}
