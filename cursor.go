package depot

import (
	"iter"

	"github.com/TheBitDrifter/table"
)

var _ iCursor = &Cursor{}

// iCursor is the minimal iteration surface a Cursor exposes.
type iCursor interface {
	Entities() iter.Seq2[int, table.Table]
	Next() bool
}

// Cursor iterates the entities of every archetype matching a QueryNode.
// While a Cursor is initialized it holds the storage's reserved
// cursorLockBit, deferring structural mutation (spawns, despawns,
// component add/remove that would move a row) to the operation queue
// until the cursor is reset -- matching warehouse's Cursor, whose
// AddLock/PopLock calls predate Storage's per-bit lock API and are
// reconciled here onto that one reserved bit.
type Cursor struct {
	query            QueryNode
	storage          Storage
	currentArchetype ArchetypeImpl
	storageIndex     int
	entityIndex      int
	remaining        int

	initialized     bool
	matchedStorages []ArchetypeImpl
}

func newCursor(query QueryNode, storage Storage) *Cursor {
	return &Cursor{query: query, storage: storage}
}

// Next advances to the next entity and returns whether one exists.
func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	if !c.initialized {
		c.Initialize()
	}
	for c.storageIndex < len(c.matchedStorages) {
		c.currentArchetype = c.matchedStorages[c.storageIndex]
		c.remaining = c.currentArchetype.table.Length()
		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.storageIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

// Entities returns an iterator over (row, table) pairs matching the query.
func (c *Cursor) Entities() iter.Seq2[int, table.Table] {
	return func(yield func(int, table.Table) bool) {
		c.Initialize()
		for c.storageIndex < len(c.matchedStorages) {
			c.currentArchetype = c.matchedStorages[c.storageIndex]
			c.remaining = c.currentArchetype.table.Length()
			for c.entityIndex < c.remaining {
				if !yield(c.entityIndex, c.currentArchetype.table) {
					c.Reset()
					return
				}
				c.entityIndex++
			}
			c.entityIndex = 0
			c.storageIndex++
		}
		c.Reset()
	}
}

// Initialize locks the storage and collects every archetype matching the
// query.
func (c *Cursor) Initialize() {
	if c.initialized {
		return
	}
	c.storage.AddLock(cursorLockBit)
	c.matchedStorages = c.matchedStorages[:0]
	for _, arch := range c.storage.Archetypes() {
		if c.query.Evaluate(arch, c.storage) {
			c.matchedStorages = append(c.matchedStorages, arch)
		}
	}
	if len(c.matchedStorages) > 0 {
		c.storageIndex = 0
		c.currentArchetype = c.matchedStorages[0]
		c.remaining = c.currentArchetype.table.Length()
	}
	c.initialized = true
}

// Reset clears cursor state and releases the storage lock, draining any
// operations that queued up while the cursor held it.
func (c *Cursor) Reset() {
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matchedStorages = nil
	c.initialized = false
	c.storage.RemoveLock(cursorLockBit)
}

// CurrentEntity returns the entity at the cursor's current position.
func (c *Cursor) CurrentEntity() (Entity, error) {
	return c.EntityAtOffset(0)
}

// EntityAtOffset returns the entity at the given offset from the current
// position.
func (c *Cursor) EntityAtOffset(offset int) (Entity, error) {
	row := c.entityIndex - 1 + offset
	entry, err := c.currentArchetype.table.Entry(row)
	if err != nil {
		return nil, err
	}
	return c.storage.entityForEntry(entry)
}

// EntityIndex returns the current row within the current archetype.
func (c *Cursor) EntityIndex() int { return c.entityIndex }

// RemainingInArchetype returns how many entities are left in the current
// archetype.
func (c *Cursor) RemainingInArchetype() int { return c.remaining - c.entityIndex }

// TotalMatched returns the total number of entities matching the query.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.Initialize()
	}
	total := 0
	for _, arch := range c.matchedStorages {
		total += arch.table.Length()
	}
	c.Reset()
	return total
}
