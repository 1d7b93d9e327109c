package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/depotengine/depot"
	"github.com/depotengine/depot/ecs"
)

// AppLabel names a sub-app within an App's AppLabel -> SubApp map
// (spec §4.l), e.g. a render app kept behind the main simulation app.
type AppLabel string

// ExtractFunc copies whatever a sub-app needs out of the main World,
// given exclusive access to both (spec §4.l step 5).
type ExtractFunc func(sub *SubApp, main *depot.World) error

// ExtractedWorld is the resource App installs on a sub-app's World for
// the duration of one extract call, so the user-supplied ExtractFunc
// (and anything it calls) has a typed way to reach the main World
// without threading it through every function signature.
type ExtractedWorld struct {
	World *depot.World
}

// SubApp owns one World, its Schedules, and a Dispatcher sized to run
// them. An App's main app is itself a SubApp; additional sub-apps
// (e.g. a render app) are added via App.AddSubApp.
type SubApp struct {
	world      *depot.World
	schedules  *Schedules
	order      *ScheduleOrder
	dispatcher *ecs.Dispatcher

	plugins  []Plugin
	built    bool
	finished bool
}

func newSubApp(world *depot.World, cfg Config) *SubApp {
	return &SubApp{
		world:      world,
		schedules:  newSchedules(),
		order:      NewScheduleOrder(),
		dispatcher: ecs.NewDispatcher(world, cfg.Workers, ecs.WithLogger(cfg.Logger)),
	}
}

// World returns the SubApp's World.
func (s *SubApp) World() *depot.World { return s.world }

// Schedules returns the SubApp's schedule map.
func (s *SubApp) Schedules() *Schedules { return s.schedules }

// Order returns the SubApp's ScheduleOrder, mutable by plugins that
// want to splice in a schedule (e.g. via InsertAfter).
func (s *SubApp) Order() *ScheduleOrder { return s.order }

// Dispatcher returns the SubApp's Dispatcher, for plugins that need to
// call WorldScope directly rather than through a schedule.
func (s *SubApp) Dispatcher() *ecs.Dispatcher { return s.dispatcher }

// AddPlugin queues p to run during the next Build call.
func (s *SubApp) AddPlugin(p Plugin) *SubApp {
	s.plugins = append(s.plugins, p)
	return s
}

func (s *SubApp) build() error {
	if s.built {
		return nil
	}
	for _, p := range s.plugins {
		if err := p.Build(s); err != nil {
			return err
		}
	}
	s.built = true
	return nil
}

func (s *SubApp) finish() error {
	if s.finished {
		return nil
	}
	for _, p := range s.plugins {
		if err := p.Finish(s); err != nil {
			return err
		}
	}
	s.finished = true
	return nil
}

// runSchedule takes label out of the schedule map for the duration of
// its dispatch and re-inserts it afterward, logging if a plugin
// registered a same-label replacement in the interim (spec §4.l step
// 4's "a re-insertion during execution logs a warning and
// overwrites"). Run-once schedules are skipped once they've completed
// successfully.
func (s *SubApp) runSchedule(ctx context.Context, logger logFn, label ScheduleLabel, tick uint64, dt time.Duration) error {
	if runOnceOnly(label) && s.schedules.hasRan(label) {
		return nil
	}
	sch, ok := s.schedules.take(label)
	if !ok {
		return nil
	}
	err := s.dispatcher.RunSchedule(ctx, sch, tick, dt)
	if overwrote := s.schedules.give(label, sch); overwrote {
		logger("schedule re-registered during run, overwriting", string(label))
	}
	if err == nil && runOnceOnly(label) {
		s.schedules.markRan(label)
	}
	return err
}

func (s *SubApp) update(ctx context.Context, logger logFn, tick uint64, dt time.Duration) error {
	for _, label := range s.order.Labels() {
		if err := s.runSchedule(ctx, logger, label, tick, dt); err != nil {
			return err
		}
	}
	return nil
}

// App is the top-level owner of a main World plus any number of named
// sub-apps, matching spec §4.l: "An App owns a World, a Schedules
// resource, a ScheduleOrder resource, a map AppLabel -> SubApp, a
// runner, and an optional extract_fn [per sub-app]."
type App struct {
	Main *SubApp

	cfg      Config
	subApps  map[AppLabel]*SubApp
	subOrder []AppLabel
	extract  map[AppLabel]ExtractFunc
	runner   Runner

	tick          uint64
	exitRequested atomic.Bool
	built         bool
	finished      bool
}

// New constructs an App with a fresh main World and MainSchedulePlugin
// already queued.
func New(opts ...Option) *App {
	cfg := newConfig(opts...)
	a := &App{
		cfg:     cfg,
		Main:    newSubApp(depot.NewWorld(), cfg),
		subApps: make(map[AppLabel]*SubApp),
		extract: make(map[AppLabel]ExtractFunc),
		runner:  DefaultRunner{},
	}
	a.Main.AddPlugin(MainSchedulePlugin{})
	return a
}

// AddPlugin queues p against the main app.
func (a *App) AddPlugin(p Plugin) *App {
	a.Main.AddPlugin(p)
	return a
}

// AddSubApp registers a new sub-app under label, extracted from the
// main World via fn immediately before its own update each frame.
func (a *App) AddSubApp(label AppLabel, fn ExtractFunc) *SubApp {
	sub := newSubApp(depot.NewWorld(), a.cfg)
	a.subApps[label] = sub
	a.subOrder = append(a.subOrder, label)
	a.extract[label] = fn
	return sub
}

// SubApp returns the sub-app registered under label.
func (a *App) SubApp(label AppLabel) (*SubApp, bool) {
	s, ok := a.subApps[label]
	return s, ok
}

// SetRunner replaces the default step/exit runner.
func (a *App) SetRunner(r Runner) *App {
	a.runner = r
	return a
}

// RequestExit signals the runner to stop after the current Update
// completes (spec §5: "AppExit is signalled ... the runner observes it
// after the current update() completes").
func (a *App) RequestExit() { a.exitRequested.Store(true) }

// Build runs every registered plugin's Build step, main app first,
// then sub-apps in registration order.
func (a *App) Build() error {
	if a.built {
		return nil
	}
	if err := a.Main.build(); err != nil {
		return err
	}
	for _, label := range a.subOrder {
		if err := a.subApps[label].build(); err != nil {
			return err
		}
	}
	a.built = true
	return nil
}

// Finish runs every registered plugin's Finish step, main app first,
// then sub-apps in registration order. Build must have already
// succeeded for every plugin.
func (a *App) Finish() error {
	if a.finished {
		return nil
	}
	if err := a.Main.finish(); err != nil {
		return err
	}
	for _, label := range a.subOrder {
		if err := a.subApps[label].finish(); err != nil {
			return err
		}
	}
	a.finished = true
	return nil
}

// Update runs every schedule in the main app's ScheduleOrder, then
// extracts into and updates every sub-app in turn (spec §4.l steps
// 4-5).
func (a *App) Update(ctx context.Context) error {
	dt := a.cfg.FrameDelta
	logger := a.cfg.Logger.Warn

	if err := a.Main.update(ctx, logger, a.tick, dt); err != nil {
		return err
	}
	for _, label := range a.subOrder {
		sub := a.subApps[label]
		if fn := a.extract[label]; fn != nil {
			if err := a.extractInto(sub, fn); err != nil {
				return err
			}
		}
		if err := sub.update(ctx, logger, a.tick, dt); err != nil {
			return err
		}
	}
	a.tick++
	return nil
}

// extractInto locks both worlds exclusively, installs ExtractedWorld
// on sub, runs fn, then removes it again -- spec §4.l step 5's
// "atomically locks both worlds."
func (a *App) extractInto(sub *SubApp, fn ExtractFunc) error {
	a.Main.world.Lock()
	defer a.Main.world.Unlock()
	sub.world.Lock()
	defer sub.world.Unlock()

	depot.InsertResource[ExtractedWorld](sub.world.Resources(), ExtractedWorld{World: a.Main.world})
	defer depot.RemoveResource[ExtractedWorld](sub.world.Resources())

	return fn(sub, a.Main.world)
}

// Step runs one Update and reports whether the runner should keep
// going (false once RequestExit has been observed).
func (a *App) Step(ctx context.Context) bool {
	if err := a.Update(ctx); err != nil {
		a.cfg.Logger.Error("app update failed", "error", err)
	}
	return !a.exitRequested.Load()
}

// Exit runs PreExit, Exit, then PostExit on the main app, skipping any
// that were never registered. Each runs at most once per App, like
// the startup schedules.
func (a *App) Exit(ctx context.Context) {
	logger := a.cfg.Logger.Warn
	dt := a.cfg.FrameDelta
	for _, label := range []ScheduleLabel{PreExit, Exit, PostExit} {
		if _, ok := a.Main.schedules.Get(label); !ok {
			continue
		}
		if err := a.Main.runSchedule(ctx, logger, label, a.tick, dt); err != nil {
			a.cfg.Logger.Error("exit schedule failed", "schedule", string(label), "error", err)
		}
	}
}

// Run builds, finishes, and hands the app to its Runner (spec §4.l
// step 3). The default Runner repeatedly calls Step until it returns
// false, then calls Exit.
func (a *App) Run(ctx context.Context) error {
	if err := a.Build(); err != nil {
		return err
	}
	if err := a.Finish(); err != nil {
		return err
	}
	a.runner.Run(ctx, a)
	return nil
}

// Runner drives an App's lifecycle after Build/Finish have succeeded.
type Runner interface {
	Run(ctx context.Context, app *App)
}

// DefaultRunner repeatedly steps the app until RequestExit is
// observed, then runs its exit schedules.
type DefaultRunner struct{}

// Run implements Runner.
func (DefaultRunner) Run(ctx context.Context, app *App) {
	for app.Step(ctx) {
	}
	app.Exit(ctx)
}

// logFn is the narrow logging shape runSchedule needs, satisfied by
// depotlog.Logger.Warn.
type logFn func(msg string, kv ...any)
