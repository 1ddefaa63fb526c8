package setops

import (
	"container/heap"

	"github.com/pique-io/pique/region"
)

// bitmapImpl implements SetOperations for BITMAP via word-parallel ops
// over 64-bit blocks. Grounded on
// original_source/include/pique/setops/bitmap/bitmap-setops.hpp.
type bitmapImpl struct{}

func (bitmapImpl) Accepts(types ...region.Type) bool {
	for _, t := range types {
		if t != region.BITMAP {
			return false
		}
	}
	return true
}

func (bitmapImpl) Unary(r region.Region, _ UnaryOp) (region.Region, error) {
	bm := r.(*region.BitmapRegion)
	out := make([]uint64, len(bm.Blocks()))
	for i, w := range bm.Blocks() {
		out[i] = ^w
	}
	return region.NewBitmapRegion(bm.DomainSize(), out), nil
}

func wordOp(op Op, a, b uint64) uint64 {
	switch op {
	case UNION:
		return a | b
	case INTERSECTION:
		return a & b
	case DIFFERENCE:
		return a &^ b
	default: // SYMMETRIC_DIFFERENCE
		return a ^ b
	}
}

func (bitmapImpl) Binary(l, r region.Region, op Op) (region.Region, error) {
	a, b := l.(*region.BitmapRegion), r.(*region.BitmapRegion)
	if a.DomainSize() != b.DomainSize() {
		return nil, region.ErrDomainMismatch
	}
	out := make([]uint64, len(a.Blocks()))
	for i := range out {
		out[i] = wordOp(op, a.Blocks()[i], b.Blocks()[i])
	}
	return region.NewBitmapRegion(a.DomainSize(), out), nil
}

type bitmapHeapItem struct{ r *region.BitmapRegion }
type bitmapHeap []bitmapHeapItem

func (h bitmapHeap) Len() int            { return len(h) }
func (h bitmapHeap) Less(i, j int) bool  { return h[i].r.SizeInBytes() < h[j].r.SizeInBytes() }
func (h bitmapHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bitmapHeap) Push(x interface{}) { *h = append(*h, x.(bitmapHeapItem)) }
func (h *bitmapHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m bitmapImpl) Nary(regions []region.Region, op Op) (region.Region, error) {
	if op == DIFFERENCE {
		result := regions[0]
		var err error
		for _, next := range regions[1:] {
			result, err = m.Binary(result, next, op)
			if err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	h := make(bitmapHeap, len(regions))
	for i, r := range regions {
		h[i] = bitmapHeapItem{r.(*region.BitmapRegion)}
	}
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(bitmapHeapItem)
		b := heap.Pop(&h).(bitmapHeapItem)
		combined, err := m.Binary(a.r, b.r, op)
		if err != nil {
			return nil, err
		}
		heap.Push(&h, bitmapHeapItem{combined.(*region.BitmapRegion)})
	}
	return h[0].r, nil
}
