package setops

import (
	"container/heap"

	"github.com/pique-io/pique/region"
)

// iiImpl implements SetOperations for the II (sorted inverted-index)
// encoding via the classic sorted-merge list algorithm, Θ(|A|+|B|) per
// binary op. Grounded on
// original_source/include/pique/setops/ii/ii-setops.hpp.
type iiImpl struct{}

func (iiImpl) Accepts(types ...region.Type) bool {
	for _, t := range types {
		if t != region.II {
			return false
		}
	}
	return true
}

func (iiImpl) Unary(r region.Region, _ UnaryOp) (region.Region, error) {
	ii := r.(*region.IIRegion)
	rids := ii.RIDs()
	out := make([]uint32, 0, int(ii.DomainSize())-len(rids))
	pos := uint32(0)
	i := 0
	for uint64(pos) < ii.DomainSize() {
		if i < len(rids) && rids[i] == pos {
			i++
		} else {
			out = append(out, pos)
		}
		pos++
	}
	return region.NewIIRegion(ii.DomainSize(), out), nil
}

func (m iiImpl) Binary(l, r region.Region, op Op) (region.Region, error) {
	a, b := l.(*region.IIRegion), r.(*region.IIRegion)
	if a.DomainSize() != b.DomainSize() {
		return nil, region.ErrDomainMismatch
	}
	return region.NewIIRegion(a.DomainSize(), listBinary(a.RIDs(), b.RIDs(), op)), nil
}

// iiHeapItem orders operands by serialized size for the Huffman-style
// N-ary balance.
type iiHeapItem struct{ r *region.IIRegion }
type iiHeap []iiHeapItem

func (h iiHeap) Len() int            { return len(h) }
func (h iiHeap) Less(i, j int) bool  { return len(h[i].r.RIDs()) < len(h[j].r.RIDs()) }
func (h iiHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *iiHeap) Push(x interface{}) { *h = append(*h, x.(iiHeapItem)) }
func (h *iiHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m iiImpl) Nary(regions []region.Region, op Op) (region.Region, error) {
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

	h := make(iiHeap, len(regions))
	for i, r := range regions {
		h[i] = iiHeapItem{r.(*region.IIRegion)}
	}
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(iiHeapItem)
		b := heap.Pop(&h).(iiHeapItem)
		combined, err := m.Binary(a.r, b.r, op)
		if err != nil {
			return nil, err
		}
		heap.Push(&h, iiHeapItem{combined.(*region.IIRegion)})
	}
	return h[0].r, nil
}
