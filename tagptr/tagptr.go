// tagptr.go
//
// Single-word tagged values for the edge engine.  Two renditions coexist
// because the callers have two different shapes of state:
//
//   Word    — a uint64 carrying a 3-bit tag plus a 61-bit payload.  Used for
//             the per-node strategy words, where the FETCH_ADD predecessor
//             count must ride in the same word that names the strategy so a
//             single atomic add both counts and keeps the tag intact.
//
//   Atomic  — an atomic (tag, pointer) pair.  Realised as an atomic.Pointer
//             to an immutable Cell; CAS is by cell identity, which is
//             strictly stronger than value CAS against ABA and preserves
//             every retry protocol in this module.  Used for tree slots
//             (dyntree, port trees) where the tag space is wider and the
//             pointer may name one of several node types.

package tagptr

import (
	"sync/atomic"
	"unsafe"
)

// Word layout: payload<<TagBits | tag.
type Word uint64

const (
	TagBits = 3
	TagMask = 1<<TagBits - 1

	// PayloadUnit is the increment that adds 1 to the payload of a Word
	// without disturbing its tag.
	PayloadUnit = 1 << TagBits
)

// Make packs a tag and payload into a Word.
func Make(tag uint64, payload uint64) Word {
	return Word(payload<<TagBits | tag&TagMask)
}

// Tag extracts the low tag bits.
func (w Word) Tag() uint64 { return uint64(w) & TagMask }

// Payload extracts the value carried above the tag.
func (w Word) Payload() uint64 { return uint64(w) >> TagBits }

// Cell is an immutable (tag, pointer) pair.  Cells are never mutated after
// construction; a slot changes state by swinging to a different cell.
type Cell struct {
	tag uint32
	ptr unsafe.Pointer
}

// nilCells interns the pointer-free cells for small tags so that slots
// initialised to the same (tag, nil) state share one identity and CAS
// against it from any thread.
var nilCells = func() [TagMask + 1]*Cell {
	var cs [TagMask + 1]*Cell
	for i := range cs {
		cs[i] = &Cell{tag: uint32(i)}
	}
	return cs
}()

// New builds a cell for a (tag, pointer) pair.  Nil-pointer cells with
// small tags come from the interned table, so two slots holding the same
// empty state hold the same cell.
func New(tag uint32, p unsafe.Pointer) *Cell {
	if p == nil && tag <= TagMask {
		return nilCells[tag]
	}
	return &Cell{tag: tag, ptr: p}
}

// Tag returns the cell's tag.  A nil cell reads as tag 0, so slots left at
// their zero value behave like interned (0, nil) cells on the load path.
func (c *Cell) Tag() uint32 {
	if c == nil {
		return 0
	}
	return c.tag
}

// Pointer returns the cell's pointer half.
func (c *Cell) Pointer() unsafe.Pointer {
	if c == nil {
		return nil
	}
	return c.ptr
}

// Atomic is a slot holding one Cell.
type Atomic struct {
	v atomic.Pointer[Cell]
}

// Load returns the current cell.  The result is the CAS witness: pass it
// back as old to CompareAndSwap.
func (a *Atomic) Load() *Cell { return a.v.Load() }

// Store unconditionally installs a cell.
func (a *Atomic) Store(c *Cell) { a.v.Store(c) }

// CompareAndSwap swings the slot from the witnessed cell to a new one.
func (a *Atomic) CompareAndSwap(old, new *Cell) bool {
	return a.v.CompareAndSwap(old, new)
}
