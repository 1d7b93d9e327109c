package app

import (
	"fmt"

	"github.com/depotengine/depot/ecs"
)

// ScheduleLabel names one schedule within an App or SubApp's
// Schedules map.
type ScheduleLabel string

// Canonical schedule labels, matching the order
// MainSchedulePlugin installs (spec §4.l), with StateTransition kept
// as an empty placeholder schedule between PreUpdate and Update per
// SPEC_FULL.md §C (epix_engine's app.cpp/main_schedule.cpp run one
// there; no state-machine module is in this spec's scope, so it never
// gains systems of its own).
const (
	PreStartup      ScheduleLabel = "PreStartup"
	Startup         ScheduleLabel = "Startup"
	PostStartup     ScheduleLabel = "PostStartup"
	First           ScheduleLabel = "First"
	PreUpdate       ScheduleLabel = "PreUpdate"
	StateTransition ScheduleLabel = "StateTransition"
	Update          ScheduleLabel = "Update"
	PostUpdate      ScheduleLabel = "PostUpdate"
	Last            ScheduleLabel = "Last"
	PreExit         ScheduleLabel = "PreExit"
	Exit            ScheduleLabel = "Exit"
	PostExit        ScheduleLabel = "PostExit"
)

// mainOrder is the order MainSchedulePlugin installs into a fresh
// SubApp's ScheduleOrder. PreExit/Exit/PostExit are not part of it --
// the runner invokes those directly during Exit, never as part of the
// per-frame Update loop (spec §4.l step 3).
var mainOrder = []ScheduleLabel{
	PreStartup, Startup, PostStartup,
	First, PreUpdate, StateTransition, Update, PostUpdate, Last,
}

// runOnceOnly reports whether a schedule is a startup or exit schedule,
// run at most once per App lifetime.
func runOnceOnly(label ScheduleLabel) bool {
	switch label {
	case PreStartup, Startup, PostStartup, PreExit, Exit, PostExit:
		return true
	default:
		return false
	}
}

// Schedules holds every schedule registered against a SubApp, keyed by
// label, along with which run-once schedules have already fired.
type Schedules struct {
	byLabel map[ScheduleLabel]*ecs.Schedule
	ran     map[ScheduleLabel]bool
}

func newSchedules() *Schedules {
	return &Schedules{
		byLabel: make(map[ScheduleLabel]*ecs.Schedule),
		ran:     make(map[ScheduleLabel]bool),
	}
}

// Add inserts (or replaces) the schedule registered under label. A
// replace while that schedule is mid-execution would be a caller bug;
// AddSystem-style mutation during a run step is what spec §4.l step 4
// warns logs-and-overwrites -- SubApp.runSchedule takes the schedule
// out of this map for the duration of its run, so Add during that
// window always targets the map, never the in-flight copy, and is
// exactly that overwrite.
func (s *Schedules) Add(label ScheduleLabel, sch *ecs.Schedule) {
	s.byLabel[label] = sch
}

// Get returns the schedule registered under label, if any.
func (s *Schedules) Get(label ScheduleLabel) (*ecs.Schedule, bool) {
	sch, ok := s.byLabel[label]
	return sch, ok
}

// take removes and returns the schedule for label, for the duration of
// SubApp.runSchedule's dispatch.
func (s *Schedules) take(label ScheduleLabel) (*ecs.Schedule, bool) {
	sch, ok := s.byLabel[label]
	if ok {
		delete(s.byLabel, label)
	}
	return sch, ok
}

// give re-inserts a schedule taken via take, logging (via the caller)
// if a plugin registered a same-label replacement in the interim.
func (s *Schedules) give(label ScheduleLabel, sch *ecs.Schedule) (overwrote bool) {
	_, overwrote = s.byLabel[label]
	s.byLabel[label] = sch
	return overwrote
}

func (s *Schedules) markRan(label ScheduleLabel) { s.ran[label] = true }
func (s *Schedules) hasRan(label ScheduleLabel) bool { return s.ran[label] }

// ScheduleOrder is the ordered list of schedule labels a SubApp's
// Update step runs through, in order, each frame (spec §4.l step 4).
type ScheduleOrder struct {
	labels []ScheduleLabel
}

// NewScheduleOrder builds a ScheduleOrder from an explicit label list.
func NewScheduleOrder(labels ...ScheduleLabel) *ScheduleOrder {
	return &ScheduleOrder{labels: append([]ScheduleLabel(nil), labels...)}
}

// Labels returns the order's labels, in execution order.
func (o *ScheduleOrder) Labels() []ScheduleLabel { return o.labels }

// InsertAfter inserts label immediately after anchor, or at the end if
// anchor isn't present -- the mechanism a plugin uses to splice a
// custom schedule into the canonical order without rebuilding it by
// hand.
func (o *ScheduleOrder) InsertAfter(anchor, label ScheduleLabel) {
	for i, l := range o.labels {
		if l == anchor {
			o.labels = append(o.labels[:i+1], append([]ScheduleLabel{label}, o.labels[i+1:]...)...)
			return
		}
	}
	o.labels = append(o.labels, label)
}

func (o *ScheduleOrder) String() string {
	return fmt.Sprintf("%v", o.labels)
}

// MainSchedulePlugin installs the canonical schedule order into a
// SubApp: PreStartup, Startup, PostStartup, First, PreUpdate,
// StateTransition, Update, PostUpdate, Last (spec §4.l). It also
// installs empty PreExit, Exit and PostExit schedules, which stay out of
// that order and run only through App.Exit. Every App installs it by
// default; a render SubApp can install a narrower order instead.
type MainSchedulePlugin struct{}

// Build implements Plugin.
func (MainSchedulePlugin) Build(sub *SubApp) error {
	for _, label := range append(append([]ScheduleLabel(nil), mainOrder...), PreExit, Exit, PostExit) {
		if _, ok := sub.schedules.Get(label); !ok {
			sub.schedules.Add(label, ecs.NewSchedule(string(label)))
		}
	}
	sub.order = NewScheduleOrder(mainOrder...)
	return nil
}

// Finish implements Plugin; MainSchedulePlugin needs no finalization.
func (MainSchedulePlugin) Finish(*SubApp) error { return nil }
