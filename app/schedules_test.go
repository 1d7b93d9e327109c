package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/depotengine/depot/ecs"
)

func TestSchedulesTakeGiveDetectsReinsertionDuringRun(t *testing.T) {
	s := newSchedules()
	original := ecs.NewSchedule(string(Update))
	s.Add(Update, original)

	taken, ok := s.take(Update)
	require.True(t, ok)
	require.Same(t, original, taken)

	_, ok = s.Get(Update)
	require.False(t, ok, "schedule should be absent from the map while taken")

	replacement := ecs.NewSchedule(string(Update))
	s.Add(Update, replacement)

	overwrote := s.give(Update, taken)
	require.True(t, overwrote, "give should report an overwrite when a plugin re-registered mid-run")

	got, ok := s.Get(Update)
	require.True(t, ok)
	require.Same(t, taken, got, "give always re-inserts its own schedule, winning over the interim replacement")
}

func TestSchedulesGiveWithoutReinsertionReportsNoOverwrite(t *testing.T) {
	s := newSchedules()
	sch := ecs.NewSchedule(string(Update))
	s.Add(Update, sch)

	taken, ok := s.take(Update)
	require.True(t, ok)

	overwrote := s.give(Update, taken)
	require.False(t, overwrote)
}

func TestSchedulesMarkRanAndHasRan(t *testing.T) {
	s := newSchedules()
	require.False(t, s.hasRan(Startup))
	s.markRan(Startup)
	require.True(t, s.hasRan(Startup))
	require.False(t, s.hasRan(PostStartup))
}

func TestRunOnceOnlyClassifiesStartupAndExitLabels(t *testing.T) {
	for _, label := range []ScheduleLabel{PreStartup, Startup, PostStartup, PreExit, Exit, PostExit} {
		require.True(t, runOnceOnly(label), "%s should be run-once", label)
	}
	for _, label := range []ScheduleLabel{First, PreUpdate, StateTransition, Update, PostUpdate, Last} {
		require.False(t, runOnceOnly(label), "%s should not be run-once", label)
	}
}

func TestScheduleOrderInsertAfterSplicesIntoMiddle(t *testing.T) {
	o := NewScheduleOrder(First, PreUpdate, Update, PostUpdate, Last)
	o.InsertAfter(PreUpdate, StateTransition)

	require.Equal(t, []ScheduleLabel{First, PreUpdate, StateTransition, Update, PostUpdate, Last}, o.Labels())
}

func TestScheduleOrderInsertAfterMissingAnchorAppendsAtEnd(t *testing.T) {
	o := NewScheduleOrder(First, Update)
	o.InsertAfter("NoSuchLabel", Last)

	require.Equal(t, []ScheduleLabel{First, Update, Last}, o.Labels())
}

func TestMainSchedulePluginBuildInstallsOrderAndDoesNotClobberExisting(t *testing.T) {
	sub := newSubApp(nil, Config{Workers: 1})
	custom := ecs.NewSchedule(string(Update))
	sub.schedules.Add(Update, custom)

	require.NoError(t, MainSchedulePlugin{}.Build(sub))

	got, ok := sub.schedules.Get(Update)
	require.True(t, ok)
	require.Same(t, custom, got, "Build should not replace an already-registered schedule")

	_, ok = sub.schedules.Get(First)
	require.True(t, ok, "Build should install schedules it doesn't already have")

	require.Equal(t, mainOrder, sub.order.Labels())
}
