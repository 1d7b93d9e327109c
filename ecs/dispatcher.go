package ecs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/depotengine/depot"
	"github.com/depotengine/depot/depotlog"
	"github.com/depotengine/depot/depotmetrics"
)

// Dispatcher is the shared thread pool a World's schedules run systems
// on, per spec §4.k. Grounded on DangerosoDavo-ecs/scheduler_impl.go's
// basicScheduler (pending/running/free_indices admission loop, a
// world_scope barrier, draining on close) -- reworked around depot's
// own Access/Compatible (access.go) instead of component-name sets,
// and around golang.org/x/sync/semaphore for pool-size admission
// instead of a hand-rolled worker-pool+channel pair, since depot's
// go.mod already carries x/sync for exactly this job (SPEC_FULL.md §B).
type Dispatcher struct {
	world *depot.World
	sem   *semaphore.Weighted

	logger  depotlog.Logger
	metrics *depotmetrics.SchedulerCollector

	mu     sync.Mutex
	closed bool
	inShed sync.WaitGroup

	ambiguousMu   sync.Mutex
	ambiguousSeen map[ambiguousPair]bool
}

// ambiguousPair identifies one unordered pair of system names, used to
// warn about AmbiguousAccess exactly once per pair rather than once per
// tick.
type ambiguousPair struct{ a, b string }

func newAmbiguousPair(a, b string) ambiguousPair {
	if a > b {
		a, b = b, a
	}
	return ambiguousPair{a: a, b: b}
}

// DispatcherOption configures a Dispatcher at construction time,
// following the functional-options idiom depot/app.Config also uses.
type DispatcherOption func(*Dispatcher)

// WithLogger attaches a depotlog.Logger for dispatcher diagnostics.
func WithLogger(l depotlog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics attaches a depotmetrics.SchedulerCollector, fed one
// ScheduleSummary per RunSchedule call.
func WithMetrics(m *depotmetrics.SchedulerCollector) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds a Dispatcher bound to world with a pool sized
// to workers (clamped to at least 1).
func NewDispatcher(world *depot.World, workers int, opts ...DispatcherOption) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		world:         world,
		sem:           semaphore.NewWeighted(int64(workers)),
		logger:        depotlog.Nop(),
		ambiguousSeen: make(map[ambiguousPair]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunSchedule prepares sch if needed and runs it to completion: systems
// whose dependencies are satisfied and whose Access is compatible with
// everything currently running are admitted onto the pool; exclusive
// systems run alone. Deferred command queues are applied, in schedule
// order, once every system has returned -- before RunSchedule returns,
// never interleaved with system execution, matching spec §5's ordering
// guarantee.
func (d *Dispatcher) RunSchedule(ctx context.Context, sch *Schedule, tick uint64, dt time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.inShed.Add(1)
	d.mu.Unlock()
	defer d.inShed.Done()

	if sch == nil || len(sch.nodes) == 0 {
		return nil
	}
	if !sch.prepared {
		if err := sch.Prepare(); err != nil {
			return err
		}
	}

	start := time.Now()
	r := &scheduleRun{
		d: d, sch: sch, tick: tick, dt: dt,
		remaining:       make(map[string]int, len(sch.nodes)),
		running:         make(map[int]runningSlot),
		perSystemQueues: make(map[string]*depot.CommandQueue, len(sch.nodes)),
	}
	for k, v := range sch.prevCount {
		r.remaining[k] = v
	}
	for _, name := range sch.order {
		if r.remaining[name] == 0 {
			r.pending = append(r.pending, name)
		}
	}
	r.cond = sync.NewCond(&r.mu)

	err := r.execute(ctx)
	d.world.AdvanceTick()

	if d.metrics != nil {
		d.metrics.Observe(depotmetrics.ScheduleSummary{
			Schedule:        sch.Label,
			SystemsTotal:    len(sch.nodes),
			SystemsExecuted: r.executed,
			SystemsSkipped:  r.skipped,
			DurationSeconds: time.Since(start).Seconds(),
			Err:             err,
		})
	}
	return err
}

// WorldScope runs fn with exclusive World access, blocking until every
// currently running system (in any in-flight RunSchedule) finishes --
// spec §4.k's synchronization barrier. Relies on World's own RWMutex:
// running non-exclusive systems hold its read side for their duration,
// so Lock() here naturally waits for them the same way it would for
// any other writer.
func (d *Dispatcher) WorldScope(fn func(*depot.World) error) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.mu.Unlock()

	d.world.Lock()
	defer d.world.Unlock()
	return fn(d.world)
}

// Close marks the dispatcher closed and waits for any in-flight
// RunSchedule call to finish, matching spec §5's "dispatchers drain on
// drop" -- there is no per-system cancellation, only this drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.inShed.Wait()
}

// warnAmbiguousOnce logs an AmbiguousAccess diagnostic the first time a
// and b are found to have conflicting Access with no declared order
// between them, per spec §7 / §4.j: the dispatcher still serializes them
// correctly (the later one waits), this only surfaces that a schedule
// author may want to pin the order explicitly with Before/After instead
// of leaving it to whichever one happened to become pending first.
func (d *Dispatcher) warnAmbiguousOnce(a, b string) {
	pair := newAmbiguousPair(a, b)
	d.ambiguousMu.Lock()
	defer d.ambiguousMu.Unlock()
	if d.ambiguousSeen[pair] {
		return
	}
	d.ambiguousSeen[pair] = true
	d.logger.Warn("AmbiguousAccess: conflicting systems have no declared order, scheduler inserted a runtime order",
		"system_a", pair.a, "system_b", pair.b)
}

type runningSlot struct {
	name   string
	access depot.Access
}

// scheduleRun holds the per-call admission state for one
// RunSchedule invocation: the pending FIFO, running slot set, and
// per-system results, exactly the pending/running/free_indices triple
// spec §4.k names (free_indices falls out of running being a map
// keyed by an ever-incrementing slot counter rather than a slice, so
// there's nothing to separately recycle).
type scheduleRun struct {
	d    *Dispatcher
	sch  *Schedule
	tick uint64
	dt   time.Duration

	mu               sync.Mutex
	cond             *sync.Cond
	remaining        map[string]int
	pending          []string
	running          map[int]runningSlot
	nextSlot         int
	exclusiveRunning bool

	perSystemQueues map[string]*depot.CommandQueue
	executed        int
	skipped         int
	firstErr        error
}

func (r *scheduleRun) execute(ctx context.Context) error {
	var wg sync.WaitGroup

	r.mu.Lock()
	for {
		r.admitLocked(ctx, &wg)
		if len(r.pending) == 0 && len(r.running) == 0 {
			break
		}
		r.cond.Wait()
	}
	r.mu.Unlock()

	wg.Wait()

	queue := depot.NewCommandQueue(r.d.world)
	for _, name := range r.sch.order {
		if cq, ok := r.perSystemQueues[name]; ok {
			queue.Append(cq)
		}
	}
	r.d.world.Lock()
	err := queue.Apply()
	r.d.world.Unlock()
	if err != nil && r.firstErr == nil {
		r.firstErr = err
	}
	return r.firstErr
}

// admitLocked attempts to start every pending system compatible with
// the current running set, in FIFO order; it must be called with
// r.mu held. A system blocked on compatibility stays at the front of
// pending and is retried the next time admitLocked runs (after some
// other system completes), giving the "earlier-to-become-ready runs
// first" tie-break spec §4.j describes.
func (r *scheduleRun) admitLocked(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < len(r.pending); {
		name := r.pending[i]
		node := r.sch.nodes[name]

		if !node.system.interval.shouldRun(r.tick) {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			r.skipped++
			r.completeLocked(name, nil)
			continue
		}

		if r.exclusiveRunning {
			return
		}
		if node.system.exclusive {
			if len(r.running) > 0 {
				return
			}
		} else {
			conflict := false
			for _, rs := range r.running {
				if !node.system.Access().Compatible(rs.access) {
					conflict = true
					if !r.sch.hasDeclaredOrder(name, rs.name) {
						r.d.warnAmbiguousOnce(name, rs.name)
					}
					break
				}
			}
			if conflict {
				i++
				continue
			}
		}

		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		slot := r.nextSlot
		r.nextSlot++
		r.running[slot] = runningSlot{name: name, access: node.system.Access()}
		if node.system.exclusive {
			r.exclusiveRunning = true
		}

		if err := r.d.sem.Acquire(ctx, 1); err != nil {
			delete(r.running, slot)
			if node.system.exclusive {
				r.exclusiveRunning = false
			}
			r.completeLocked(name, err)
			continue
		}

		wg.Add(1)
		go r.runOne(ctx, node, slot, wg)
	}
}

func (r *scheduleRun) runOne(ctx context.Context, node *NodeConfig, slot int, wg *sync.WaitGroup) {
	defer wg.Done()
	defer r.d.sem.Release(1)

	world := r.d.world
	if node.system.exclusive {
		world.Lock()
		defer world.Unlock()
	} else {
		world.RLock()
		defer world.RUnlock()
	}

	sctx := &Context{
		world:  world,
		queue:  depot.NewCommandQueue(world),
		dt:     r.dt,
		tick:   r.tick,
		logger: r.d.logger,
	}

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.d.logger.Error("system panicked", "system", node.system.Name, "panic", rec)
				err = fmt.Errorf("depot/ecs: system %s panicked: %v", node.system.Name, rec)
			}
		}()
		err = node.system.fn(sctx)
	}()

	if err != nil {
		r.d.logger.Warn("system returned error, skipped for this tick", "system", node.system.Name, "error", err)
	}

	r.mu.Lock()
	delete(r.running, slot)
	if node.system.exclusive {
		r.exclusiveRunning = false
	}
	r.perSystemQueues[node.system.Name] = sctx.queue
	r.executed++
	r.completeLocked(node.system.Name, err)
	r.cond.Broadcast()
	r.mu.Unlock()
}

// completeLocked records name as finished, propagating the first
// error seen, and promotes any successor whose dependencies are now
// all satisfied into pending. Must be called with r.mu held.
func (r *scheduleRun) completeLocked(name string, err error) {
	if err != nil && r.firstErr == nil {
		r.firstErr = err
	}
	for _, succ := range r.sch.successors[name] {
		r.remaining[succ]--
		if r.remaining[succ] == 0 {
			r.pending = append(r.pending, succ)
		}
	}
}
