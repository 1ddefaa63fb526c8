// Package convert implements the CBLQ-to-bitmap conversion component
// (§2.J, §4.B): out-of-place conversion in both breadth-first and
// depth-first traversal flavors (which must agree bit-for-bit), plus an
// in-place fused union/intersection into an already-populated bitmap.
// Grounded on
// original_source/include/pique/convert/cblq/cblq-to-bitmap-convert.hpp
// and include/pique/convert/region-convert.hpp.
package convert

import (
	"errors"

	"github.com/pique-io/pique/region"
)

// ErrDomainMismatch mirrors region.ErrDomainMismatch for the fused
// in-place path, where the destination bitmap must already match the
// source's domain size.
var ErrDomainMismatch = errors.New("convert: destination domain size mismatch")

// FuseOp selects the combine operation for FuseInto.
type FuseOp int

const (
	FuseUnion FuseOp = iota
	FuseIntersection
)

// ToBitmapDFS performs an out-of-place conversion of a CBLQ region to a
// BitmapRegion, visiting terminal cells in depth-first order.
func ToBitmapDFS(r *region.CBLQRegion) *region.BitmapRegion {
	return materialize(r, r.CellsDFS())
}

// ToBitmapBFS is the breadth-first-traversal twin of ToBitmapDFS; it must
// produce a bit-identical result for equal inputs.
func ToBitmapBFS(r *region.CBLQRegion) *region.BitmapRegion {
	return materialize(r, r.CellsBFS())
}

func materialize(r *region.CBLQRegion, cells []region.CBLQCell) *region.BitmapRegion {
	blocks := make([]uint64, (r.DomainSize()+63)/64)
	for _, cell := range cells {
		setCell(blocks, cell)
	}
	return region.NewBitmapRegion(r.DomainSize(), blocks)
}

func setCell(blocks []uint64, cell region.CBLQCell) {
	if cell.Filled {
		for i := uint64(0); i < cell.Span; i++ {
			pos := cell.Start + i
			blocks[pos/64] |= uint64(1) << (pos % 64)
		}
		return
	}
	for i, b := range cell.Dense {
		if b {
			pos := cell.Start + uint64(i)
			blocks[pos/64] |= uint64(1) << (pos % 64)
		}
	}
}

// FuseInto converts src and combines it into dst in place via op.
// FuseUnion sets src's cells directly into dst with no intermediate
// bitmap; FuseIntersection first builds a temporary bitmap of src and
// ANDs it into dst word by word. dst must
// already have the correct domain size (it is typically a freshly
// allocated all-zero bitmap for FuseUnion, or a freshly allocated
// all-one bitmap for FuseIntersection).
func FuseInto(src *region.CBLQRegion, dst *region.BitmapRegion, op FuseOp, traverseBFS bool) error {
	if src.DomainSize() != dst.DomainSize() {
		return ErrDomainMismatch
	}
	var cells []region.CBLQCell
	if traverseBFS {
		cells = src.CellsBFS()
	} else {
		cells = src.CellsDFS()
	}

	blocks := dst.Blocks()
	switch op {
	case FuseUnion:
		for _, cell := range cells {
			setCell(blocks, cell)
		}
	case FuseIntersection:
		// Build the source's bitmap first (straightforward and
		// correct; a streaming word-level AND is a performance
		// refinement this implementation does not attempt), then AND
		// word-by-word into dst.
		srcBlocks := make([]uint64, len(blocks))
		for _, cell := range cells {
			setCell(srcBlocks, cell)
		}
		for i := range blocks {
			blocks[i] &= srcBlocks[i]
		}
	}
	return nil
}
