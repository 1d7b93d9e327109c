package ecs

import (
	"sort"

	"github.com/depotengine/depot"
)

// NodeConfig holds one system's ordering edges within a Schedule,
// named the way spec §4.j's "tree of configs naming systems, sets, and
// relations" describes the schedule builder's input.
type NodeConfig struct {
	system *System
	before []string
	after  []string
}

type setEdge struct{ before, after string }

// Schedule is a named, buildable graph of systems. Prepare lowers
// set-to-set edges to transitive system-to-system edges and
// topologically sorts the result, rejecting cycles (spec §4.j
// "prepare"). A Dispatcher runs a Schedule's systems admitting them as
// their Access allows once Prepare has succeeded.
type Schedule struct {
	Label string

	nodes    map[string]*NodeConfig
	setEdges []setEdge

	// order is the deterministic topological order computed by
	// Prepare; successors/prevCount are the adjacency and
	// "per-node prev counts" spec §4.j step 3 asks the builder to
	// produce for the runner.
	order      []string
	successors map[string][]string
	prevCount  map[string]int
	prepared   bool
}

// NewSchedule constructs an empty, unprepared Schedule.
func NewSchedule(label string) *Schedule {
	return &Schedule{Label: label, nodes: make(map[string]*NodeConfig)}
}

// Builder accumulates NodeConfigs and set-level ordering edges for a
// Schedule prior to Prepare.
type Builder struct {
	schedule *Schedule
}

// Builder returns a Builder for adding systems and edges to s.
func (s *Schedule) Builder() *Builder {
	s.prepared = false
	return &Builder{schedule: s}
}

// SystemHandle references a registered system for attaching ordering
// edges, mirroring bevy's `IntoSystemConfigs` chaining ergonomics.
type SystemHandle struct {
	schedule *Schedule
	name     string
}

// AddSystem registers sys with the schedule, returning a handle for
// attaching Before/After edges.
func (b *Builder) AddSystem(sys *System) *SystemHandle {
	b.schedule.nodes[sys.Name] = &NodeConfig{system: sys}
	b.schedule.prepared = false
	return &SystemHandle{schedule: b.schedule, name: sys.Name}
}

// OrderSets adds a transitive edge from every system in set before to
// every system in set after, lowered to system-to-system `depends`
// edges during Prepare (spec §4.j step 2).
func (b *Builder) OrderSets(before, after string) {
	b.schedule.setEdges = append(b.schedule.setEdges, setEdge{before: before, after: after})
	b.schedule.prepared = false
}

// Before declares that h's system must run before every named system.
func (h *SystemHandle) Before(names ...string) *SystemHandle {
	n := h.schedule.nodes[h.name]
	n.before = append(n.before, names...)
	h.schedule.prepared = false
	return h
}

// After declares that h's system must run after every named system.
func (h *SystemHandle) After(names ...string) *SystemHandle {
	n := h.schedule.nodes[h.name]
	n.after = append(n.after, names...)
	h.schedule.prepared = false
	return h
}

// hasDeclaredOrder reports whether a and b have a direct successor edge
// in either direction, from an explicit Before/After or a lowered
// OrderSets edge. Used to tell a genuinely undeclared AmbiguousAccess
// conflict apart from two systems that are merely both eligible to run
// because neither is the other's immediate predecessor.
func (s *Schedule) hasDeclaredOrder(a, b string) bool {
	for _, v := range s.successors[a] {
		if v == b {
			return true
		}
	}
	for _, v := range s.successors[b] {
		if v == a {
			return true
		}
	}
	return false
}

// Prepare topologically sorts the schedule's nodes (Kahn's algorithm,
// with ties broken by system name for determinism), lowering set-level
// edges first. It is idempotent and safe to call before every run; a
// Dispatcher calls it automatically if the schedule hasn't been
// prepared since its last edit.
func (s *Schedule) Prepare() error {
	indegree := make(map[string]int, len(s.nodes))
	adj := make(map[string][]string, len(s.nodes))
	for name := range s.nodes {
		indegree[name] = 0
	}

	addEdge := func(u, v string) {
		if _, ok := s.nodes[u]; !ok {
			return
		}
		if _, ok := s.nodes[v]; !ok {
			return
		}
		adj[u] = append(adj[u], v)
		indegree[v]++
	}

	for name, n := range s.nodes {
		for _, v := range n.before {
			addEdge(name, v)
		}
		for _, u := range n.after {
			addEdge(u, name)
		}
	}
	for _, se := range s.setEdges {
		for bname, bn := range s.nodes {
			if bn.system.set != se.before {
				continue
			}
			for aname, an := range s.nodes {
				if an.system.set != se.after {
					continue
				}
				addEdge(bname, aname)
			}
		}
	}

	prevCount := make(map[string]int, len(indegree))
	for k, v := range indegree {
		prevCount[k] = v
	}

	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(s.nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, v := range adj[n] {
			indegree[v]--
			if indegree[v] == 0 {
				ready = append(ready, v)
			}
		}
	}

	if len(order) != len(s.nodes) {
		var stuck []string
		for name, d := range indegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return depot.ScheduleCycleError{Path: stuck}
	}

	s.order = order
	s.successors = adj
	s.prevCount = prevCount
	s.prepared = true
	return nil
}
