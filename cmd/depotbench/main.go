// Command depotbench drives a small App through a fixed number of
// frames, exercising the full depot/app + depot/ecs + depot stack end
// to end: component registration, a two-system Update schedule running
// concurrently under the dispatcher, and command-queue-driven entity
// spawning. Not part of the public API contract and not run by any
// test; grounded on warehouse_bench's benchmark harness
// (bench/warehouse_test.go) but rebuilt as a runnable frame loop
// instead of a *testing.B micro-benchmark.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/depotengine/depot"
	"github.com/depotengine/depot/app"
	"github.com/depotengine/depot/ecs"
)

// Position and Velocity are the stand-in Table-class components every
// frame's Update schedule moves, the same pair warehouse_bench uses.
type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

// Spawned is a resource counting how many entities the
// spawn system has created so far, read back by the report at the end
// of the run.
type Spawned struct {
	Count int
}

func main() {
	frames := flag.Int("frames", 120, "number of Update frames to run")
	entities := flag.Int("entities", 4096, "initial Position+Velocity entity count")
	workers := flag.Int("workers", 4, "dispatcher worker count")
	flag.Parse()

	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()

	a := app.New(app.WithWorkers(*workers))
	world := a.Main.World()

	if _, err := world.Storage().NewEntities(*entities, position, velocity); err != nil {
		panic(err)
	}
	depot.InsertResource[Spawned](world.Resources(), Spawned{})

	moveAccess := depot.NewAccessBuilder(world.Types())
	depot.ReadsComponent[Velocity](moveAccess)
	depot.WritesComponent[Position](moveAccess)
	moveSystem := ecs.NewSystem("move", moveAccess.Build(), func(ctx *ecs.Context) error {
		query := depot.Factory.NewQuery()
		node := query.And(velocity, position)
		cursor := depot.Factory.NewCursor(node, ctx.World().Storage())
		dt := ctx.DeltaTime().Seconds()
		for cursor.Next() {
			pos := position.GetFromCursor(cursor)
			vel := velocity.GetFromCursor(cursor)
			pos.X += vel.X * dt
			pos.Y += vel.Y * dt
		}
		return nil
	})

	spawnAccess := depot.NewAccessBuilder(world.Types())
	depot.WritesResource[Spawned](spawnAccess)
	spawnSystem := ecs.NewSystem("spawn", spawnAccess.Build(), func(ctx *ecs.Context) error {
		ctx.Commands().Spawn(position, velocity)
		depot.WithResourceMut[Spawned](ctx.World().Resources(), func(s *Spawned) {
			s.Count++
		})
		return nil
	}).RunEvery(ecs.TickInterval{Every: 30})

	if err := a.Build(); err != nil {
		panic(err)
	}

	sch, ok := a.Main.Schedules().Get(app.Update)
	if !ok {
		panic("Update schedule not installed by MainSchedulePlugin")
	}
	builder := sch.Builder()
	builder.AddSystem(moveSystem)
	builder.AddSystem(spawnSystem)

	if err := a.Finish(); err != nil {
		panic(err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < *frames; i++ {
		if err := a.Update(ctx); err != nil {
			panic(err)
		}
	}
	elapsed := time.Since(start)

	spawned, _ := depot.GetResource[Spawned](world.Resources())
	fmt.Printf("depotbench: %d frames, %d initial entities, %d workers, %d spawned, %s total (%s/frame)\n",
		*frames, *entities, *workers, spawned.Count, elapsed, elapsed/time.Duration(*frames))
}
