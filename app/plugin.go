package app

// Plugin registers schedules, systems, and resources against a SubApp
// during build, and performs any finalization that must wait until
// every plugin's build call has run (spec §4.l steps 1-2, e.g.
// allocating a GPU handle that depends on another plugin's resource).
type Plugin interface {
	Build(sub *SubApp) error
	Finish(sub *SubApp) error
}

// NoFinish can be embedded by a Plugin with nothing to do at Finish
// time, the common case.
type NoFinish struct{}

// Finish implements Plugin as a no-op.
func (NoFinish) Finish(*SubApp) error { return nil }

// PluginFunc adapts a bare build function to a Plugin with no Finish
// step.
type PluginFunc func(sub *SubApp) error

// Build implements Plugin.
func (f PluginFunc) Build(sub *SubApp) error { return f(sub) }

// Finish implements Plugin as a no-op.
func (PluginFunc) Finish(*SubApp) error { return nil }
