package setops

import (
	"container/heap"

	"github.com/pique-io/pique/region"
)

// ciiImpl implements SetOperations for CII: complement (NOT) flips the
// is_inverted flag in O(1); binary ops normalize via De Morgan's laws to
// push complements to the outside before running the list algorithm on
// the stored RID vectors (decompressing lazily if needed). Grounded on
// original_source/include/pique/setops/cii/cii-setops.hpp.
type ciiImpl struct{}

func (ciiImpl) Accepts(types ...region.Type) bool {
	for _, t := range types {
		if t != region.CII {
			return false
		}
	}
	return true
}

func (ciiImpl) Unary(r region.Region, _ UnaryOp) (region.Region, error) {
	c := r.(*region.CIIRegion)
	return region.NewCIIRegion(c.DomainSize(), c.StoredRIDs(), !c.IsInverted()), nil
}

// deMorgan implements the fixed normalization table (§4.A): given the
// stored RID vectors and invert flags of two operands, returns the
// stored-space op to run and the result's invert flag.
func deMorgan(invA, invB bool, op Op) (swappedOp Op, resultInverted bool, swapOperands bool) {
	switch {
	case !invA && !invB:
		return op, false, false
	case invA && invB:
		switch op {
		case UNION:
			return INTERSECTION, true, false
		case INTERSECTION:
			return UNION, true, false
		case DIFFERENCE:
			// NOT(A)-NOT(B) == B-A
			return DIFFERENCE, false, true
		default: // SYMMETRIC_DIFFERENCE
			return SYMMETRIC_DIFFERENCE, false, false
		}
	case invA && !invB:
		switch op {
		case UNION:
			return DIFFERENCE, true, false
		case INTERSECTION:
			return DIFFERENCE, false, true
		case DIFFERENCE:
			return UNION, true, false
		default:
			return SYMMETRIC_DIFFERENCE, true, false
		}
	default: // !invA && invB
		switch op {
		case UNION:
			return DIFFERENCE, true, true
		case INTERSECTION:
			return DIFFERENCE, false, false
		case DIFFERENCE:
			return INTERSECTION, false, false
		default:
			return SYMMETRIC_DIFFERENCE, true, false
		}
	}
}

func (m ciiImpl) Binary(l, r region.Region, op Op) (region.Region, error) {
	a, b := l.(*region.CIIRegion), r.(*region.CIIRegion)
	if a.DomainSize() != b.DomainSize() {
		return nil, region.ErrDomainMismatch
	}
	swappedOp, resultInverted, swap := deMorgan(a.IsInverted(), b.IsInverted(), op)
	sa, sb := a.StoredRIDs(), b.StoredRIDs()
	if swap {
		sa, sb = sb, sa
	}
	stored := listBinary(sa, sb, swappedOp)
	return region.NewCIIRegion(a.DomainSize(), stored, resultInverted), nil
}

type ciiHeapItem struct {
	rid uint32
	idx int
}
type ciiMergeHeap []ciiHeapItem

func (h ciiMergeHeap) Len() int            { return len(h) }
func (h ciiMergeHeap) Less(i, j int) bool  { return h[i].rid < h[j].rid }
func (h ciiMergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *ciiMergeHeap) Push(x interface{}) { *h = append(*h, x.(ciiHeapItem)) }
func (h *ciiMergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// naryUnionNonInverted performs a k-way merge over the sorted stored RID
// vectors of non-inverted operands, guarded by a min-heap of
// (next_rid, operand_index), dropping repeated RIDs. Grounded on §4.A's
// "CII has a specialized N-ary UNION" description.
func naryUnionNonInverted(lists [][]uint32) []uint32 {
	h := make(ciiMergeHeap, 0, len(lists))
	pos := make([]int, len(lists))
	for i, l := range lists {
		if len(l) > 0 {
			h = append(h, ciiHeapItem{rid: l[0], idx: i})
		}
	}
	heap.Init(&h)
	out := make([]uint32, 0)
	var last uint32
	haveLast := false
	for h.Len() > 0 {
		top := heap.Pop(&h).(ciiHeapItem)
		if !haveLast || top.rid != last {
			out = append(out, top.rid)
			last = top.rid
			haveLast = true
		}
		pos[top.idx]++
		if pos[top.idx] < len(lists[top.idx]) {
			heap.Push(&h, ciiHeapItem{rid: lists[top.idx][pos[top.idx]], idx: top.idx})
		}
	}
	return out
}

func (m ciiImpl) Nary(regions []region.Region, op Op) (region.Region, error) {
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

	if op == UNION {
		allNonInverted := true
		lists := make([][]uint32, len(regions))
		for i, r := range regions {
			c := r.(*region.CIIRegion)
			if c.IsInverted() {
				allNonInverted = false
				break
			}
			lists[i] = c.StoredRIDs()
		}
		if allNonInverted {
			merged := naryUnionNonInverted(lists)
			return region.NewCIIRegion(regions[0].DomainSize(), merged, false), nil
		}
	}

	// Fallback: Huffman-style pairwise fold (still equals the full fold
	// up to heap ordering, property 6).
	return huffmanFold(regions, op)
}
