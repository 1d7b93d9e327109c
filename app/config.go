// Package app implements depot's App/SubApp runtime: plugin
// registration, the canonical schedule order, and the extract step
// that hands a frozen view of the main World to render-style sub-apps,
// per spec §4.l. Grounded on DangerosoDavo-ecs/world.go's functional
// WorldOption pattern and scheduler_impl.go's SchedulerBuilder, adapted
// from a single-World builder to the App/SubApp/Plugin tree spec §4.l
// describes -- the teacher (TheBitDrifter/warehouse) has no app-level
// concept at all, so this package's shape comes entirely from the
// secondary grounding source.
package app

import (
	"time"

	"github.com/depotengine/depot/depotlog"
)

// Config configures an App's dispatcher and default logging, built
// with functional options rather than a flag/env parser -- depot is an
// embeddable library, not a service with a CLI (SPEC_FULL.md §A).
type Config struct {
	Workers    int
	Logger     depotlog.Logger
	FrameDelta time.Duration
}

// Option configures a Config.
type Option func(*Config)

// WithWorkers sets the dispatcher's worker pool size.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithLogger sets the App's default logger, used by any schedule/
// plugin that doesn't configure its own.
func WithLogger(l depotlog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithFrameDelta fixes the delta-time passed to every system, for
// deterministic test and headless-server runs. Without it every system
// is passed a delta of 0; no wall-clock time is measured.
func WithFrameDelta(d time.Duration) Option {
	return func(c *Config) { c.FrameDelta = d }
}

func newConfig(opts ...Option) Config {
	c := Config{Workers: 1, Logger: depotlog.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}
