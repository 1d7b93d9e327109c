package depot

import "github.com/TheBitDrifter/table"

// WorldOption configures a World at construction time.
type WorldOption func(*World)

// WithTableEvents installs te as the table.TableEvents hooks fired by every
// archetype table this World builds. Unlike warehouse's package-level
// Config (a single mutable global all callers shared), this is per-World:
// two Worlds in the same process can register independent hooks, which
// matters once a dispatcher (package depot/ecs) runs more than one World
// side by side, e.g. a server's authoritative World and a client-side
// prediction World logging through different sinks.
func WithTableEvents(te table.TableEvents) WorldOption {
	return func(w *World) { w.tableEvents = te }
}
