package depot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedQuery1ReadIteratesMatches(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	entities, err := storage.NewEntities(3, posComp)
	require.NoError(t, err)
	for i, e := range entities {
		*posComp.GetFromEntity(e) = Position{X: float64(i)}
	}
	_, err = storage.NewEntities(2, velComp)
	require.NoError(t, err)

	q := NewTypedQuery1(storage, Read(posComp))

	seen := 0
	for _, v := range q.Iter() {
		seen++
		require.NotNil(t, v)
	}
	require.Equal(t, 3, seen, "only entities carrying Position should match")
}

func TestTypedQuery1MutItemStampsModifiedTick(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()

	_, err := storage.NewEntities(1, posComp)
	require.NoError(t, err)

	since := world.AdvanceTick()

	q := NewTypedQuery1(storage, MutItem(world, posComp))
	for range q.Iter() {
	}

	node := newLeafNode([]Component{posComp.Component})
	cur := newCursor(node, storage)
	require.True(t, cur.Next())
	require.True(t, posComp.ChangedSinceFromCursor(world, cur, since),
		"MutItem's fetch must stamp Modified so a later ChangedSince observes it")
}

func TestTypedQuery2OptItemReportsPresence(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	withBoth, err := storage.NewEntities(1, posComp, velComp)
	require.NoError(t, err)
	withPosOnly, err := storage.NewEntities(1, posComp)
	require.NoError(t, err)

	q := NewTypedQuery2(storage, Read(posComp), OptItem(velComp))

	results := map[Entity]OptRef[Velocity]{}
	q.Each(func(e Entity, _ Ref[Position], v OptRef[Velocity]) bool {
		results[e] = v
		return true
	})

	require.True(t, results[withBoth[0]].Present)
	require.False(t, results[withPosOnly[0]].Present)
}

func TestTypedQuery2HasItemNeverNarrowsMatch(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	_, err := storage.NewEntities(1, posComp, velComp)
	require.NoError(t, err)
	_, err = storage.NewEntities(1, posComp)
	require.NoError(t, err)

	q := NewTypedQuery2(storage, Read(posComp), HasItem(velComp))

	count := 0
	hasTrue := 0
	q.Each(func(_ Entity, _ Ref[Position], has bool) bool {
		count++
		if has {
			hasTrue++
		}
		return true
	})
	require.Equal(t, 2, count)
	require.Equal(t, 1, hasTrue)
}

func TestTypedQuery2EntityItemReturnsMatchedHandle(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()

	entities, err := storage.NewEntities(1, posComp)
	require.NoError(t, err)

	q := NewTypedQuery2(storage, EntityItem(), Read(posComp))

	var got Entity
	q.Each(func(e Entity, self Entity, _ Ref[Position]) bool {
		got = self
		return true
	})
	require.Equal(t, entities[0], got)
}

func TestTypedQuery1WithWithoutFilters(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()
	healthComp := FactoryNewComponent[Health]()

	_, err := storage.NewEntities(2, posComp, velComp)
	require.NoError(t, err)
	_, err = storage.NewEntities(3, posComp, healthComp)
	require.NoError(t, err)

	q := NewTypedQuery1(storage, Read(posComp), Without(velComp))

	seen := 0
	for range q.Iter() {
		seen++
	}
	require.Equal(t, 3, seen, "Without(velocity) should exclude the pos+vel entities")
}

func TestTypedQuery1GetContainsAndEmpty(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	withPos, err := storage.NewEntities(1, posComp)
	require.NoError(t, err)
	withVel, err := storage.NewEntities(1, velComp)
	require.NoError(t, err)

	q := NewTypedQuery1(storage, Read(posComp))

	require.False(t, q.Empty())
	require.True(t, q.Contains(withPos[0]))
	require.False(t, q.Contains(withVel[0]))

	v, ok := q.Get(withPos[0])
	require.True(t, ok)
	require.NotNil(t, v)

	_, ok = q.Get(withVel[0])
	require.False(t, ok)
}

func TestTypedQuery1SingleFailsOnZeroOrMultipleMatches(t *testing.T) {
	world := NewWorld()
	storage := world.Storage()
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	qEmpty := NewTypedQuery1(storage, Read(velComp))
	_, _, ok := qEmpty.Single()
	require.False(t, ok)

	entities, err := storage.NewEntities(1, posComp)
	require.NoError(t, err)
	qOne := NewTypedQuery1(storage, Read(posComp))
	e, v, ok := qOne.Single()
	require.True(t, ok)
	require.Equal(t, entities[0], e)
	require.NotNil(t, v)

	_, err = storage.NewEntities(1, posComp)
	require.NoError(t, err)
	_, _, ok = qOne.Single()
	require.False(t, ok, "two matches must fail Single")
}
