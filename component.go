package depot

import (
	"github.com/TheBitDrifter/table"
)

// Component represents a data attribute/state that can be attached to
// entities using the Table storage class: it is packed, column-wise, into
// whichever archetype table currently holds the owning entity.
//
// Components that should instead use the SparseSet storage class (rare
// relative to entity count, or attached/detached far more often than the
// archetype they'd otherwise force) are declared with
// FactoryNewSparseComponent instead; see sparseset.go.
type Component interface {
	table.ElementType
}

// StorageClass selects how a registered type is physically stored.
type StorageClass uint8

const (
	// StorageClassTable packs the component into archetype-table columns.
	StorageClassTable StorageClass = iota
	// StorageClassSparseSet keys the component by entity index in a map
	// independent of the entity's archetype.
	StorageClassSparseSet
)

func (s StorageClass) String() string {
	switch s {
	case StorageClassTable:
		return "table"
	case StorageClassSparseSet:
		return "sparse-set"
	default:
		return "unknown"
	}
}
