package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/depotengine/depot"
)

func noopSystem(name string) *System {
	return NewSystem(name, depot.Access{}, func(ctx *Context) error { return nil })
}

func TestSchedulePrepareOrdersByDependency(t *testing.T) {
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(noopSystem("c")).After("a", "b")
	b.AddSystem(noopSystem("a"))
	b.AddSystem(noopSystem("b")).After("a")

	require.NoError(t, sch.Prepare())
	require.Equal(t, []string{"a", "b", "c"}, sch.order)
}

func TestSchedulePrepareBreaksTiesByName(t *testing.T) {
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(noopSystem("z"))
	b.AddSystem(noopSystem("a"))
	b.AddSystem(noopSystem("m"))

	require.NoError(t, sch.Prepare())
	require.Equal(t, []string{"a", "m", "z"}, sch.order)
}

func TestSchedulePrepareDetectsCycle(t *testing.T) {
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(noopSystem("a")).After("b")
	b.AddSystem(noopSystem("b")).After("a")

	err := sch.Prepare()
	require.Error(t, err)
	var cycleErr depot.ScheduleCycleError
	require.ErrorAs(t, err, &cycleErr)
	require.ElementsMatch(t, []string{"a", "b"}, cycleErr.Path)
}

func TestScheduleOrderSetsLowerToSystemEdges(t *testing.T) {
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(noopSystem("input").InSet("input-set"))
	b.AddSystem(noopSystem("physics").InSet("physics-set"))
	b.OrderSets("input-set", "physics-set")

	require.NoError(t, sch.Prepare())
	inputIdx := indexOf(sch.order, "input")
	physicsIdx := indexOf(sch.order, "physics")
	require.Less(t, inputIdx, physicsIdx)
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestSchedulePrepareIsIdempotent(t *testing.T) {
	sch := NewSchedule("Update")
	b := sch.Builder()
	b.AddSystem(noopSystem("a"))
	b.AddSystem(noopSystem("b")).After("a")

	require.NoError(t, sch.Prepare())
	first := append([]string(nil), sch.order...)
	require.NoError(t, sch.Prepare())
	require.Equal(t, first, sch.order)
}
