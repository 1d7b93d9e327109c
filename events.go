package depot

import "sync"

// eventRecord pairs a written value with a monotonic sequence number so
// readers with different cursors can resume independently.
type eventRecord struct {
	seq   uint64
	value any
}

// eventChannel is the type-erased double-buffered ring behind
// EventWriter/EventReader (spec §3, §4.f). At most two "generations" are
// ever retained: old and new. Rotate clears old, demotes new to old, and
// starts a fresh new -- so a value survives exactly the schedule boundary
// it was written in plus one more before being dropped.
type eventChannel struct {
	mu          sync.Mutex
	old, new    []eventRecord
	oldStartSeq uint64
	nextSeq     uint64
}

func (c *eventChannel) write(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.new = append(c.new, eventRecord{seq: c.nextSeq, value: v})
	c.nextSeq++
}

// rotate is called once per schedule boundary.
func (c *eventChannel) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.old = c.new
	if len(c.new) > 0 {
		c.oldStartSeq = c.new[0].seq
	} else {
		c.oldStartSeq = c.nextSeq
	}
	c.new = nil
}

// read returns every record with seq >= *cursor, across both generations,
// in writer order, and advances *cursor past them.
func (c *eventChannel) read(cursor *uint64) []eventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []eventRecord
	for _, rec := range c.old {
		if rec.seq >= *cursor {
			out = append(out, rec)
		}
	}
	for _, rec := range c.new {
		if rec.seq >= *cursor {
			out = append(out, rec)
		}
	}
	*cursor = c.nextSeq
	return out
}

// EventWriter appends values of type T to the World's event channel for T.
type EventWriter[T any] struct{ ch *eventChannel }

// Send appends v to the channel.
func (w EventWriter[T]) Send(v T) { w.ch.write(v) }

// EventReader holds a cursor over the double-buffered ring for T.
type EventReader[T any] struct {
	ch     *eventChannel
	cursor uint64
}

// Read drains every unread event visible to this reader, in writer order,
// and advances the cursor past them.
func (r *EventReader[T]) Read() []T {
	recs := r.ch.read(&r.cursor)
	if len(recs) == 0 {
		return nil
	}
	out := make([]T, len(recs))
	for i, rec := range recs {
		out[i], _ = rec.value.(T)
	}
	return out
}

// Events is the World's aggregate of all per-type event channels.
type Events struct {
	types *TypeRegistry

	mu       sync.Mutex
	channels map[TypeId]*eventChannel
}

// NewEvents constructs an empty event aggregate bound to a TypeRegistry.
func NewEvents(types *TypeRegistry) *Events {
	return &Events{types: types, channels: make(map[TypeId]*eventChannel)}
}

func (e *Events) channelFor(id TypeId) *eventChannel {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.channels[id]
	if !ok {
		ch = &eventChannel{}
		e.channels[id] = ch
	}
	return ch
}

// Writer returns a writer for T's event channel, registering T on first
// use.
func Writer[T any](e *Events) EventWriter[T] {
	desc := Register[T](e.types, StorageClassTable)
	return EventWriter[T]{ch: e.channelFor(desc.ID)}
}

// Reader returns a fresh reader over T's event channel. A new reader's
// cursor starts at zero so it observes whatever of T's history is still
// retained in the double buffer, not only events written after it was
// created.
func Reader[T any](e *Events) *EventReader[T] {
	desc := Register[T](e.types, StorageClassTable)
	return &EventReader[T]{ch: e.channelFor(desc.ID)}
}

// Rotate advances every registered channel's double buffer by one
// generation. Called once per schedule boundary by the World.
func (e *Events) Rotate() {
	e.mu.Lock()
	channels := make([]*eventChannel, 0, len(e.channels))
	for _, ch := range e.channels {
		channels = append(channels, ch)
	}
	e.mu.Unlock()

	for _, ch := range channels {
		ch.rotate()
	}
}
