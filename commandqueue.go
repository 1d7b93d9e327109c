package depot

// Command is one deferred, type-erased mutation a CommandQueue applies to
// a World. Grounded on the EntityOperation/Apply(Storage) pattern in
// TheBitDrifter/warehouse's operation_queue.go, generalized from
// Storage-scoped operations (new/destroy/transfer/add/remove-component)
// to World-scoped ones that can also touch entity identity, resources
// and hierarchy, per spec §4.e.
type Command interface {
	Apply(*World) error
}

// CommandQueue accumulates Commands for later, World-exclusive
// application -- the mechanism systems use to spawn, despawn, or mutate
// entities and resources without taking the World lock themselves.
// Spawning reserves the returned EntityID immediately (through the
// World's EntityAllocator), but the entity has no Location, and is
// invisible to queries, until the queue is applied.
type CommandQueue struct {
	world    *World
	commands []Command
}

// NewCommandQueue constructs an empty queue bound to world. Systems that
// run concurrently each get their own queue; the dispatcher merges them
// into one queue per schedule run via Append, preserving enqueue order.
func NewCommandQueue(world *World) *CommandQueue {
	return &CommandQueue{world: world}
}

// Len reports how many commands are pending.
func (q *CommandQueue) Len() int { return len(q.commands) }

// Push appends a single Command, for callers building custom commands
// outside the builder helpers below.
func (q *CommandQueue) Push(c Command) { q.commands = append(q.commands, c) }

// Append moves every command from other onto the end of q, in order, and
// empties other. Used to fold a per-system queue into the schedule run's
// queue once every system in the run has returned.
func (q *CommandQueue) Append(other *CommandQueue) {
	if other == nil || len(other.commands) == 0 {
		return
	}
	q.commands = append(q.commands, other.commands...)
	other.commands = nil
}

// Apply drains the queue in FIFO order, applying each command to the
// bound World in turn. Commands are dropped (not retried) once applied,
// whether or not they returned an error; the first error is returned
// after every command has been attempted, so one bad command doesn't
// strand the rest of the queue for another schedule boundary.
func (q *CommandQueue) Apply() error {
	pending := q.commands
	q.commands = nil
	var firstErr error
	for _, c := range pending {
		if err := c.Apply(q.world); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// spawnCommand creates a new entity at an id reserved when Spawn was
// called, carrying the given components.
type spawnCommand struct {
	id         EntityID
	components []Component
}

func (c spawnCommand) Apply(w *World) error {
	arche, err := w.storage.NewOrExistingArchetype(c.components...)
	if err != nil {
		return err
	}
	impl := arche.(ArchetypeImpl)
	entries, err := impl.table.NewEntries(1)
	if err != nil {
		return err
	}
	row := entries[0]
	w.entities.SetLocation(c.id, Location{Archetype: uint32(impl.id), Row: row.Index()})
	en := &entity{
		Entry:      row,
		eid:        c.id,
		sto:        w.storage,
		components: append([]Component(nil), c.components...),
	}
	if st, ok := w.storage.(*storage); ok {
		st.register(en)
	}
	w.stampInsert(impl.table, row.Index(), c.components)
	return nil
}

// despawnCommand destroys an entity, ignoring ids that are already stale.
type despawnCommand struct{ id EntityID }

func (c despawnCommand) Apply(w *World) error {
	if !w.entities.Contains(c.id) {
		return nil
	}
	en, err := w.storage.Entity(c.id)
	if err != nil {
		return nil
	}
	return w.storage.DestroyEntities(en)
}

// insertComponentCommand adds a component (with an optional value) to an
// already-materialized entity.
type insertComponentCommand struct {
	id        EntityID
	component Component
	value     any
	hasValue  bool
}

func (c insertComponentCommand) Apply(w *World) error {
	en, err := w.storage.Entity(c.id)
	if err != nil {
		return nil
	}
	if c.hasValue {
		return en.AddComponentWithValue(c.component, c.value)
	}
	return en.AddComponent(c.component)
}

// removeComponentCommand removes a component from an already-materialized
// entity.
type removeComponentCommand struct {
	id        EntityID
	component Component
}

func (c removeComponentCommand) Apply(w *World) error {
	en, err := w.storage.Entity(c.id)
	if err != nil {
		return nil
	}
	return en.RemoveComponent(c.component)
}

// funcCommand adapts an arbitrary World mutation (used by the generic
// resource helpers below, which can't be methods on CommandQueue because
// Go methods can't carry their own type parameters).
type funcCommand struct{ fn func(*World) error }

func (c funcCommand) Apply(w *World) error { return c.fn(w) }

// Spawn reserves a new entity immediately and enqueues its materialization
// with the given components, returning the reserved id.
func (q *CommandQueue) Spawn(components ...Component) EntityID {
	id := q.world.entities.ReserveEntity()
	q.Push(spawnCommand{id: id, components: append([]Component(nil), components...)})
	return id
}

// Despawn enqueues destruction of an entity.
func (q *CommandQueue) Despawn(id EntityID) {
	q.Push(despawnCommand{id: id})
}

// EntityCommands is a fluent builder for enqueuing mutations against one
// already-spawned entity, mirroring bevy's Commands::entity(e).
type EntityCommands struct {
	queue *CommandQueue
	id    EntityID
}

// Entity returns a builder for further commands against id.
func (q *CommandQueue) Entity(id EntityID) EntityCommands {
	return EntityCommands{queue: q, id: id}
}

// Insert enqueues adding a zero-valued component.
func (ec EntityCommands) Insert(c Component) EntityCommands {
	ec.queue.Push(insertComponentCommand{id: ec.id, component: c})
	return ec
}

// InsertWithValue enqueues adding a component with an explicit value.
func (ec EntityCommands) InsertWithValue(c Component, value any) EntityCommands {
	ec.queue.Push(insertComponentCommand{id: ec.id, component: c, value: value, hasValue: true})
	return ec
}

// Remove enqueues removing a component.
func (ec EntityCommands) Remove(c Component) EntityCommands {
	ec.queue.Push(removeComponentCommand{id: ec.id, component: c})
	return ec
}

// Despawn enqueues destroying this entity.
func (ec EntityCommands) Despawn() {
	ec.queue.Despawn(ec.id)
}

// InsertResourceCmd enqueues InsertResource[T](v), applied exclusively
// against the World at queue-apply time.
func InsertResourceCmd[T any](q *CommandQueue, v T) {
	q.Push(funcCommand{fn: func(w *World) error {
		InsertResource[T](w.resources, v)
		return nil
	}})
}

// RemoveResourceCmd enqueues RemoveResource[T]().
func RemoveResourceCmd[T any](q *CommandQueue) {
	q.Push(funcCommand{fn: func(w *World) error {
		RemoveResource[T](w.resources)
		return nil
	}})
}
