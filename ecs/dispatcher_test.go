package ecs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/depotengine/depot"
)

type Position struct{ X, Y float64 }
type Velocity struct{ X, Y float64 }

func TestDispatcherRunsCompatibleSystemsConcurrently(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 4)
	defer d.Close()

	var inFlight int32
	var maxInFlight int32
	var mu sync.Mutex
	release := make(chan struct{})

	barrier := func(ctx *Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if n > maxInFlight {
			maxInFlight = n
		}
		mu.Unlock()
		<-release
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("a", depot.Access{}, barrier))
	b.AddSystem(NewSystem("b", depot.Access{}, barrier))
	require.NoError(t, sch.Prepare())

	done := make(chan error, 1)
	go func() {
		done <- d.RunSchedule(context.Background(), sch, 0, 0)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return maxInFlight == 2
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-done)
}

func TestDispatcherExclusiveSystemRunsAlone(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 4)
	defer d.Close()

	var order []string
	var mu sync.Mutex
	record := func(name string) SystemFunc {
		return func(ctx *Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			return nil
		}
	}

	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("exclusive", depot.Access{}, record("exclusive")).Exclusive())
	b.AddSystem(NewSystem("reader1", depot.Access{}, record("reader1")))
	b.AddSystem(NewSystem("reader2", depot.Access{}, record("reader2")))
	require.NoError(t, sch.Prepare())

	require.NoError(t, d.RunSchedule(context.Background(), sch, 0, 0))
	require.ElementsMatch(t, []string{"exclusive", "reader1", "reader2"}, order)
}

func TestDispatcherSkipsSystemOnIntervalGate(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 1)
	defer d.Close()

	var runs int32
	sys := NewSystem("every-other", depot.Access{}, func(ctx *Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}).RunEvery(TickInterval{Every: 2, Offset: 0})

	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(sys)
	require.NoError(t, sch.Prepare())

	for tick := uint64(0); tick < 4; tick++ {
		require.NoError(t, d.RunSchedule(context.Background(), sch, tick, 0))
	}
	require.Equal(t, int32(2), runs)
}

func TestDispatcherAppliesCommandsInScheduleOrder(t *testing.T) {
	world := depot.NewWorld()
	position := depot.FactoryNewComponent[Position]()
	d := NewDispatcher(world, 4)
	defer d.Close()

	var applyOrder []string
	var mu sync.Mutex

	spawnSystem := func(name string) SystemFunc {
		return func(ctx *Context) error {
			ctx.Commands().Spawn(position)
			mu.Lock()
			applyOrder = append(applyOrder, name)
			mu.Unlock()
			return nil
		}
	}

	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("first", depot.Access{}, spawnSystem("first")))
	b.AddSystem(NewSystem("second", depot.Access{}, spawnSystem("second"))).After("first")
	require.NoError(t, sch.Prepare())

	require.NoError(t, d.RunSchedule(context.Background(), sch, 0, 0))
	require.Equal(t, []string{"first", "second"}, applyOrder)

	query := depot.Factory.NewQuery()
	node := query.And(position)
	cursor := depot.Factory.NewCursor(node, world.Storage())
	count := 0
	for cursor.Next() {
		count++
	}
	require.Equal(t, 2, count)
}

func TestDispatcherWorldScopeWaitsForRunningReaders(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 4)
	defer d.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("reader", depot.Access{}, func(ctx *Context) error {
		close(entered)
		<-release
		return nil
	}))
	require.NoError(t, sch.Prepare())

	runDone := make(chan error, 1)
	go func() { runDone <- d.RunSchedule(context.Background(), sch, 0, 0) }()
	<-entered

	scopeDone := make(chan struct{})
	go func() {
		_ = d.WorldScope(func(w *depot.World) error { return nil })
		close(scopeDone)
	}()

	select {
	case <-scopeDone:
		t.Fatal("WorldScope returned before the running reader released the world")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-scopeDone
	require.NoError(t, <-runDone)
}

func TestDispatcherWarnsAmbiguousAccessOncePerPair(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 4)
	defer d.Close()

	types := world.Types()

	writerAccess := func() depot.Access {
		b := depot.NewAccessBuilder(types)
		depot.WritesComponent[Position](b)
		return b.Build()
	}()

	noop := func(ctx *Context) error { return nil }

	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("writer-a", writerAccess, noop))
	b.AddSystem(NewSystem("writer-b", writerAccess, noop))
	require.NoError(t, sch.Prepare())

	require.NoError(t, d.RunSchedule(context.Background(), sch, 0, 0))
	require.NoError(t, d.RunSchedule(context.Background(), sch, 1, 0))

	require.Len(t, d.ambiguousSeen, 1, "the conflicting pair should be warned about exactly once, not once per tick")
}

func TestDispatcherDoesNotWarnAmbiguousAccessForDeclaredOrder(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 4)
	defer d.Close()

	types := world.Types()
	writerAccess := func() depot.Access {
		b := depot.NewAccessBuilder(types)
		depot.WritesComponent[Position](b)
		return b.Build()
	}()

	noop := func(ctx *Context) error { return nil }

	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("first", writerAccess, noop))
	b.AddSystem(NewSystem("second", writerAccess, noop)).After("first")
	require.NoError(t, sch.Prepare())

	require.NoError(t, d.RunSchedule(context.Background(), sch, 0, 0))

	require.Empty(t, d.ambiguousSeen, "systems with a declared order are not ambiguous even if their access conflicts")
}

func TestDispatcherCloseDrainsInFlightRun(t *testing.T) {
	world := depot.NewWorld()
	d := NewDispatcher(world, 2)

	release := make(chan struct{})
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(NewSystem("slow", depot.Access{}, func(ctx *Context) error {
		<-release
		return nil
	}))
	require.NoError(t, sch.Prepare())

	runDone := make(chan error, 1)
	go func() { runDone <- d.RunSchedule(context.Background(), sch, 0, 0) }()

	closeDone := make(chan struct{})
	go func() {
		d.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
		t.Fatal("Close returned before the in-flight run finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-closeDone
	require.NoError(t, <-runDone)
}
