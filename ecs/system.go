// Package ecs implements depot's parallel system scheduler: the
// System wrapper, the schedule builder (topological sort over
// systems/sets with cycle detection), and the dispatcher that admits
// systems onto a shared worker pool as their declared Access permits,
// per spec §4.i-§4.k. Kept as a sub-package of depot because it
// imports the root package for World/Access/CommandQueue and would
// otherwise cycle with it.
package ecs

import (
	"time"

	"github.com/depotengine/depot"
	"github.com/depotengine/depot/depotlog"
)

// SystemFunc is the function a System wraps: given a Context scoped
// to one run, perform work and return any error. Spec §4.i describes
// systems as taking typed parameters resolved against the world at
// build time (Query<...>, Res<T>, Local<T>, Commands); depot's surface
// is narrower -- a single Context handing out World/CommandQueue
// access -- because without the reflection-driven parameter injection
// bevy's proc macros provide, a typed-parameter system signature has
// no clean idiomatic Go equivalent. Callers build their own typed
// queries from ctx.World() the way they would with any other Go
// dependency-injection-free API.
type SystemFunc func(ctx *Context) error

// Context is what a running system is handed for the duration of one
// call. Commands() returns a queue private to this run; the
// dispatcher merges it into the schedule's primary queue, in schedule
// order, once every system in the tick has returned.
type Context struct {
	world  *depot.World
	queue  *depot.CommandQueue
	dt     time.Duration
	tick   uint64
	logger depotlog.Logger
}

// World returns the World this run is scoped to.
func (c *Context) World() *depot.World { return c.world }

// Commands returns this run's private CommandQueue.
func (c *Context) Commands() *depot.CommandQueue { return c.queue }

// DeltaTime returns the delta-time passed to the schedule run.
func (c *Context) DeltaTime() time.Duration { return c.dt }

// Tick returns the tick passed to RunSchedule for this run (the App's
// frame counter when run through depot/app), not the World's change tick.
func (c *Context) Tick() uint64 { return c.tick }

// Logger returns the run's logger (a depotlog.Nop() value unless the
// owning Dispatcher was built WithLogger).
func (c *Context) Logger() depotlog.Logger { return c.logger }

// TickInterval gates how often a system runs within a schedule. The
// zero value (Every == 0) means "every tick". Otherwise the system
// runs only on ticks where tick % Every == Offset, the same
// every/offset shape spec §4.k's admission loop expects for
// interval-scheduled systems.
type TickInterval struct {
	Every  uint32
	Offset uint32
}

func (iv TickInterval) shouldRun(tick uint64) bool {
	if iv.Every == 0 {
		return true
	}
	return uint32(tick%uint64(iv.Every)) == iv.Offset
}

// System is one schedulable unit of work: a function plus the Access
// it declares up front, so the dispatcher can decide whether it may
// run alongside whatever else is currently in flight without ever
// running it speculatively.
type System struct {
	Name string

	access    depot.Access
	exclusive bool
	set       string
	interval  TickInterval
	fn        SystemFunc
}

// NewSystem declares a system named name with the given Access,
// running fn when admitted.
func NewSystem(name string, access depot.Access, fn SystemFunc) *System {
	return &System{Name: name, access: access, fn: fn}
}

// Exclusive marks the system as requiring sole access to the World:
// per spec §4.i, an exclusive system is never run in parallel with
// any other system, admitted only once the running set is empty.
func (s *System) Exclusive() *System {
	s.exclusive = true
	return s
}

// InSet tags the system as a member of the named SystemSet. Per
// SPEC_FULL.md §C (epix_engine's sub-stage concept), this is a purely
// diagnostic grouping: it has no ordering effect beyond whatever
// explicit set-to-set edges a Builder.OrderSets call establishes.
func (s *System) InSet(set string) *System {
	s.set = set
	return s
}

// RunEvery gates execution to once every interval.Every ticks,
// skipping (not blocking) admission on other ticks.
func (s *System) RunEvery(interval TickInterval) *System {
	s.interval = interval
	return s
}

// Access returns the system's declared Access descriptor.
func (s *System) Access() depot.Access { return s.access }
