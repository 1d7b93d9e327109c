package depot

// EntityOperation is one structural mutation deferred while a Cursor (or
// any other AddLock caller) holds a storage lock bit: spawn,
// despawn, transfer, or a component add/remove. Storage.Enqueue queues one,
// RemoveLock drains the whole queue once the last lock bit clears.
type EntityOperation interface {
	Apply(Storage) error
}

// entityOperationsQueue is the default EntityOperationsQueue: a plain FIFO
// slice, replayed in enqueue order once storage unlocks so that, e.g., a
// despawn queued after a spawn of the same entity still applies second.
type entityOperationsQueue struct {
	operations []EntityOperation
}

// EntityOperationsQueue provides an interface for queuing and processing operations
type EntityOperationsQueue interface {
	Enqueue(EntityOperation)
	ProcessAll(Storage) error
}

// ProcessAll applies every queued operation against sto in order and
// clears the queue. Called only from Storage.RemoveLock once every lock
// bit has cleared, so sto.Locked() is always false here; the check stays
// as a guard against a future caller invoking it directly.
func (queue *entityOperationsQueue) ProcessAll(sto Storage) error {
	if sto.Locked() {
		return nil
	}
	for _, op := range queue.operations {
		err := op.Apply(sto)
		if err != nil {
			return err
		}
	}
	queue.operations = []EntityOperation{}
	return nil
}

// Enqueue adds an operation to the queue
func (queue *entityOperationsQueue) Enqueue(op EntityOperation) {
	queue.operations = append(queue.operations, op)
}

// NewEntityOperation creates multiple entities with the same components.
type NewEntityOperation struct {
	count      int
	components []Component
}

// Apply goes through Storage.NewEntities rather than calling
// Archetype.Generate directly, so a deferred spawn gets the same
// EntityID allocation, byIdent/byEntry registration, and change-tick
// stamping a direct, unlocked spawn gets. Generating rows straight off
// the archetype here would produce entities with no EntityID at all --
// invisible to Storage.Entity, Cursor.CurrentEntity, and any Added<T>
// query -- since only World.stampInsert and storage's ident maps confer
// that identity.
func (op NewEntityOperation) Apply(sto Storage) error {
	_, err := sto.NewEntities(op.count, op.components...)
	return err
}

// DestroyEntityOperation removes an entity from storage
type DestroyEntityOperation struct {
	entity   Entity
	recycled int
}

// Apply destroys the entity if it's valid and has the expected recycled value
func (op DestroyEntityOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	err := sto.DestroyEntities(op.entity)
	if err != nil {
		return err
	}
	return nil
}

// TransferEntityOperation moves an entity from one storage to another
type TransferEntityOperation struct {
	target   Storage
	entity   Entity
	recycled int
}

// Apply transfers the entity if it's valid and has the expected recycled value
func (op TransferEntityOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	err := sto.TransferEntities(op.target, op.entity)
	if err != nil {
		return err
	}
	return nil
}

// AddComponentOperation adds a component to an entity
type AddComponentOperation struct {
	entity    Entity
	recycled  int
	component Component
	value     any
	storage   Storage
}

// Apply adds the component to the entity if conditions are met
func (op AddComponentOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	if op.storage != op.entity.Storage() {
		return nil
	}
	if op.value != nil {
		err := op.entity.AddComponentWithValue(op.component, op.value)
		if err != nil {
			return err
		}
		return nil
	}
	err := op.entity.AddComponent(op.component)
	if err != nil {
		return err
	}
	return nil
}

// RemoveComponentOperation removes a component from an entity
type RemoveComponentOperation struct {
	entity    Entity
	recycled  int
	component Component
	storage   Storage
}

// Apply removes the component from the entity if conditions are met
func (op RemoveComponentOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	if op.storage != sto {
		return nil
	}
	err := op.entity.RemoveComponent(op.component)
	if err != nil {
		return err
	}
	return nil
}
