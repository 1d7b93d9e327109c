package depot

import (
	"errors"
	"fmt"
)

// Sentinel errors for fixed-message failure modes (spec §7).
var (
	// ErrLockedStorage is returned when a structural mutation is attempted
	// while the storage is locked (e.g. mid-iteration by a Cursor).
	ErrLockedStorage = errors.New("depot: storage is currently locked")

	// ErrResourceMissing is returned by ResourceScope and the exclusive
	// resource accessors when the requested resource is absent. GetResource
	// returns (zero value, false) instead of an error.
	ErrResourceMissing = errors.New("depot: resource missing")

	// ErrNotFlushed is returned by EntityAllocator metadata reads performed
	// between a concurrent Reserve and the next Flush.
	ErrNotFlushed = errors.New("depot: entity allocator has unflushed reservations")

	// ErrEntityNotFound is returned when an EntityID does not resolve to a
	// live entity (generation mismatch or index out of range).
	ErrEntityNotFound = errors.New("depot: entity not found")

	// ErrWorldNotOwned is returned when a sub-app's world is accessed while
	// it has been taken out for an extract step.
	ErrWorldNotOwned = errors.New("depot: world not owned (temporarily taken for extract)")

	// ErrAssetNotPresent is returned when an asset slot holds no value.
	ErrAssetNotPresent = errors.New("depot: asset not present")

	// ErrIndexOutOfBound is returned when an AssetIndex addresses a slot
	// that was never allocated.
	ErrIndexOutOfBound = errors.New("depot: asset index out of bound")

	// ErrSlotEmpty reports an asset slot that has already been cleared.
	// Assets[T].Remove does not return it; Remove reports an empty slot by
	// returning false.
	ErrSlotEmpty = errors.New("depot: asset slot empty")
)

// LockedStorageError is returned in contexts that want to report the bit
// mask which is currently holding the lock.
type LockedStorageError struct{ Bits uint64 }

func (e LockedStorageError) Error() string {
	return fmt.Sprintf("storage is currently locked (bits=%064b)", e.Bits)
}

func (e LockedStorageError) Unwrap() error { return ErrLockedStorage }

// EntityRelationError reports an attempt to overwrite an existing parent
// relationship between two entities.
type EntityRelationError struct {
	Child, Parent Entity
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("child (%v) already has parent %v", e.Child, e.Parent)
}

// GenMismatchError is returned when an asset handle's generation does not
// match the generation currently held in its slot.
type GenMismatchError struct {
	Expected, Current uint32
}

func (e GenMismatchError) Error() string {
	return fmt.Sprintf("depot: generation mismatch: expected %d, current %d", e.Expected, e.Current)
}

// ScheduleCycleError reports a dependency cycle discovered while preparing
// a schedule. Path lists, sorted by name, every system that could not be
// ordered: the members of the cycle plus any system ordered after one of
// them. It is not the cycle in traversal order.
type ScheduleCycleError struct {
	Path []string
}

func (e ScheduleCycleError) Error() string {
	return fmt.Sprintf("depot: schedule dependency cycle: %v", e.Path)
}

// LoaderMissingError reports that no asset loader is registered for a file
// extension.
type LoaderMissingError struct {
	Extension string
}

func (e LoaderMissingError) Error() string {
	return fmt.Sprintf("depot: no loader registered for extension %q", e.Extension)
}

// LoadFailedError wraps the underlying cause of an asset load failure.
type LoadFailedError struct {
	Path  string
	Cause error
}

func (e LoadFailedError) Error() string {
	return fmt.Sprintf("depot: load failed for %q: %v", e.Path, e.Cause)
}

func (e LoadFailedError) Unwrap() error { return e.Cause }

// CacheFullError reports a Register call against a Cache already holding
// maxCapacity items.
type CacheFullError struct {
	MaxCapacity int
}

func (e CacheFullError) Error() string {
	return fmt.Sprintf("depot: cache at maximum capacity (%d)", e.MaxCapacity)
}
