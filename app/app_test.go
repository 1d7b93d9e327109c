package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/depotengine/depot"
	"github.com/depotengine/depot/ecs"
)

type runCounts struct {
	startup int
	update  int
}

func addCountingSystem(t *testing.T, sub *SubApp, label ScheduleLabel, counts *runCounts, bump func(*runCounts)) {
	t.Helper()
	sch, ok := sub.Schedules().Get(label)
	require.True(t, ok)
	b := sch.Builder()
	b.AddSystem(ecs.NewSystem(string(label)+"-counter", depot.Access{}, func(ctx *ecs.Context) error {
		bump(counts)
		return nil
	}))
}

func TestAppBuildInstallsCanonicalScheduleOrder(t *testing.T) {
	a := New()
	require.NoError(t, a.Build())

	expected := []ScheduleLabel{PreStartup, Startup, PostStartup, First, PreUpdate, StateTransition, Update, PostUpdate, Last}
	require.Equal(t, expected, a.Main.Order().Labels())

	for _, label := range expected {
		_, ok := a.Main.Schedules().Get(label)
		require.True(t, ok, "schedule %s should be installed", label)
	}
}

func TestAppStartupSchedulesRunExactlyOnce(t *testing.T) {
	a := New(WithFrameDelta(time.Millisecond))
	require.NoError(t, a.Build())

	counts := &runCounts{}
	addCountingSystem(t, a.Main, Startup, counts, func(c *runCounts) { c.startup++ })
	addCountingSystem(t, a.Main, Update, counts, func(c *runCounts) { c.update++ })

	require.NoError(t, a.Finish())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Update(ctx))
	}

	require.Equal(t, 1, counts.startup)
	require.Equal(t, 3, counts.update)
}

func TestAppRequestExitStopsDefaultRunner(t *testing.T) {
	a := New(WithFrameDelta(time.Millisecond))
	require.NoError(t, a.Build())

	updates := 0
	sch, ok := a.Main.Schedules().Get(Update)
	require.True(t, ok)
	b := sch.Builder()
	b.AddSystem(ecs.NewSystem("stopper", depot.Access{}, func(ctx *ecs.Context) error {
		updates++
		if updates == 3 {
			a.RequestExit()
		}
		return nil
	}))
	require.NoError(t, a.Finish())

	done := make(chan struct{})
	go func() {
		require.NoError(t, a.Run(context.Background()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after RequestExit")
	}
	require.Equal(t, 3, updates)
}

func TestAppExtractCopiesMainWorldIntoSubApp(t *testing.T) {
	type Tally struct{ Count int }

	a := New(WithFrameDelta(time.Millisecond))
	depot.InsertResource[Tally](a.Main.World().Resources(), Tally{Count: 42})

	var extracted int
	sub := a.AddSubApp("render", func(sub *SubApp, main *depot.World) error {
		tally, ok := depot.GetResource[Tally](main.Resources())
		if !ok {
			return nil
		}
		extracted = tally.Count
		return nil
	})
	_ = sub

	require.NoError(t, a.Build())
	require.NoError(t, a.Finish())
	require.NoError(t, a.Update(context.Background()))

	require.Equal(t, 42, extracted)
}

func TestAppExitRunsExitSchedulesOnceEach(t *testing.T) {
	a := New(WithFrameDelta(time.Millisecond))
	require.NoError(t, a.Build())

	exitRuns := 0
	sch, ok := a.Main.Schedules().Get(Exit)
	require.True(t, ok)
	b := sch.Builder()
	b.AddSystem(ecs.NewSystem("exit-counter", depot.Access{}, func(ctx *ecs.Context) error {
		exitRuns++
		return nil
	}))
	require.NoError(t, a.Finish())

	ctx := context.Background()
	a.Exit(ctx)
	a.Exit(ctx)

	require.Equal(t, 1, exitRuns)
}
