// Package setops implements the uniform set-operation algebra over
// region.Region values (§4.A): per-encoding SetOperations, the
// PreferenceList/ArityThreshold dispatch wrappers, and the uniformity
// simplification pass that avoids materializing trivial results.
// Grounded on original_source/include/pique/setops/*.
package setops

import (
	"container/heap"
	"errors"

	"github.com/samber/lo"

	"github.com/pique-io/pique/region"
)

// Op is an n-ary (or binary, as arity-2) set operation.
type Op int

const (
	UNION Op = iota
	INTERSECTION
	DIFFERENCE
	SYMMETRIC_DIFFERENCE
)

// UnaryOp is the single unary set operation, complement.
type UnaryOp int

const NOT UnaryOp = 0

// ErrUnsupportedCombination is an Unsupported-kind error (§7): no
// registered implementation, including the universal bitmap fallback,
// accepted the operand encoding combination.
var ErrUnsupportedCombination = errors.New("setops: no implementation accepts this operand combination")

// ErrEmptyOperands is a configuration error: Nary was called with zero
// operands and no domain/type context to materialize a uniform result.
var ErrEmptyOperands = errors.New("setops: nary called with zero operands")

// Impl is a per-encoding (or per-encoding-combination) implementation of
// the set-operation algebra.
type Impl interface {
	// Accepts reports whether this implementation can operate directly
	// on regions of the given types (all operands, for an n-ary/binary
	// call).
	Accepts(types ...region.Type) bool
	Unary(r region.Region, op UnaryOp) (region.Region, error)
	Binary(l, r region.Region, op Op) (region.Region, error)
	Nary(regions []region.Region, op Op) (region.Region, error)
}

// PreferenceListSetOperations wraps an ordered list of Impls and
// dispatches to the first one that accepts all operand types.
// Grounded on original_source/include/pique/setops/setops.hpp.
type PreferenceListSetOperations struct {
	prefs []Impl
}

func NewPreferenceList(impls ...Impl) *PreferenceListSetOperations {
	return &PreferenceListSetOperations{prefs: impls}
}

func (p *PreferenceListSetOperations) pick(types ...region.Type) (Impl, error) {
	for _, impl := range p.prefs {
		if impl.Accepts(types...) {
			return impl, nil
		}
	}
	return nil, ErrUnsupportedCombination
}

func (p *PreferenceListSetOperations) Accepts(types ...region.Type) bool {
	_, err := p.pick(types...)
	return err == nil
}

func (p *PreferenceListSetOperations) Unary(r region.Region, op UnaryOp) (region.Region, error) {
	impl, err := p.pick(r.Type())
	if err != nil {
		return nil, err
	}
	// §9 open question: the source's PreferenceList in-place dispatch
	// appears to select an implementation without invoking it.
	// PIQUE-Go always invokes the selected implementation.
	return impl.Unary(r, op)
}

func (p *PreferenceListSetOperations) Binary(l, r region.Region, op Op) (region.Region, error) {
	if l.DomainSize() != r.DomainSize() {
		return nil, region.ErrDomainMismatch
	}
	impl, err := p.pick(l.Type(), r.Type())
	if err != nil {
		return nil, err
	}
	return impl.Binary(l, r, op)
}

func (p *PreferenceListSetOperations) Nary(regions []region.Region, op Op) (region.Region, error) {
	types := lo.Map(regions, func(r region.Region, _ int) region.Type { return r.Type() })
	impl, err := p.pick(types...)
	if err != nil {
		return nil, err
	}
	return impl.Nary(regions, op)
}

// ArityThresholdSetOperations routes between two implementations based
// on operand count, e.g. switching to an n-ary-optimized implementation
// above some arity. Grounded on original_source/include/pique/setops/setops.hpp.
type ArityThresholdSetOperations struct {
	threshold int
	below     Impl
	aboveOrEq Impl
}

func NewArityThreshold(threshold int, below, aboveOrEq Impl) *ArityThresholdSetOperations {
	return &ArityThresholdSetOperations{threshold: threshold, below: below, aboveOrEq: aboveOrEq}
}

func (a *ArityThresholdSetOperations) Accepts(types ...region.Type) bool {
	return a.below.Accepts(types...) && a.aboveOrEq.Accepts(types...)
}

func (a *ArityThresholdSetOperations) Unary(r region.Region, op UnaryOp) (region.Region, error) {
	return a.below.Unary(r, op)
}

func (a *ArityThresholdSetOperations) Binary(l, r region.Region, op Op) (region.Region, error) {
	return a.below.Binary(l, r, op)
}

func (a *ArityThresholdSetOperations) Nary(regions []region.Region, op Op) (region.Region, error) {
	if len(regions) >= a.threshold {
		return a.aboveOrEq.Nary(regions, op)
	}
	return a.below.Nary(regions, op)
}

// Default is the module-wide preference list used by the package-level
// Unary/Binary/Nary helpers: same-type direct implementations first,
// then the universal bitmap-conversion fallback last.
var Default = NewPreferenceList(
	&iiImpl{},
	&ciiImpl{},
	&wahImpl{},
	&bitmapImpl{},
	&cblqImpl{},
	&bitmapFallbackImpl{}, // universal: accepts any combination
)

// Unary applies op via the default preference list.
func Unary(r region.Region, op UnaryOp) (region.Region, error) {
	return Default.Unary(r, op)
}

// Binary applies op via the default preference list, after uniformity
// simplification.
func Binary(l, r region.Region, op Op) (region.Region, error) {
	return Nary([]region.Region{l, r}, op)
}

// InplaceUnary/InplaceBinary/InplaceNary mirror their out-of-place
// counterparts. PIQUE-Go's Region values are treated as immutable once
// built (shared freely between cache and callers per §3's lifecycle
// rules), so "in-place" here means only that the implementation MAY
// choose to reuse an operand's backing storage when it is uniquely
// owned; semantically they always equal the out-of-place form (testable
// property 5).
func InplaceUnary(r region.Region, op UnaryOp) (region.Region, error) { return Unary(r, op) }
func InplaceBinary(l, r region.Region, op Op) (region.Region, error) { return Binary(l, r, op) }
func InplaceNary(regions []region.Region, op Op) (region.Region, error) {
	return Nary(regions, op)
}

// Nary applies op over regions via uniformity simplification followed by
// dispatch to the default preference list, using a Huffman-style
// min-heap balance for symmetric ops and a left fold for DIFFERENCE.
func Nary(regions []region.Region, op Op) (region.Region, error) {
	if len(regions) == 0 {
		return nil, ErrEmptyOperands
	}
	domainSize := regions[0].DomainSize()
	for _, r := range regions {
		if r.DomainSize() != domainSize {
			return nil, region.ErrDomainMismatch
		}
	}
	typ := regions[0].Type()

	resolved, operands, newOp, complement, err := Simplify(domainSize, typ, regions, op)
	if err != nil {
		return nil, err
	}

	var result region.Region
	if resolved != nil {
		result = resolved
	} else if len(operands) == 1 {
		result = operands[0]
	} else {
		result, err = evaluate(operands, newOp)
		if err != nil {
			return nil, err
		}
	}
	if complement {
		result, err = Unary(result, NOT)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// evaluate dispatches the (already-simplified) operand list to the
// engine: symmetric ops balance via a size-keyed min-heap (Huffman
// style); DIFFERENCE folds left to right.
func evaluate(operands []region.Region, op Op) (region.Region, error) {
	if op == DIFFERENCE {
		result := operands[0]
		var err error
		for _, next := range operands[1:] {
			result, err = Default.Binary(result, next, DIFFERENCE)
			if err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	// Prefer a dedicated Nary implementation when every operand shares a
	// type the preference list can serve directly (e.g. CII's k-way
	// union); else fall back to Huffman-style pairwise folding.
	if impl, err := Default.pick(typesOf(operands)...); err == nil {
		return impl.Nary(operands, op)
	}
	return huffmanFold(operands, op)
}

func typesOf(regions []region.Region) []region.Type {
	return lo.Map(regions, func(r region.Region, _ int) region.Type { return r.Type() })
}

// regionHeap orders operands by serialized size for the Huffman-style
// N-ary balance, the same container/heap idiom setops/ii.go uses for
// its own type-specialized Nary.
type regionHeap []region.Region

func (h regionHeap) Len() int            { return len(h) }
func (h regionHeap) Less(i, j int) bool  { return h[i].SizeInBytes() < h[j].SizeInBytes() }
func (h regionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *regionHeap) Push(x interface{}) { *h = append(*h, x.(region.Region)) }
func (h *regionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// huffmanFold repeatedly combines the two smallest-by-size operands
// until one remains, minimizing intermediate materialization size.
// Grounded on §4.A's "Huffman-style" N-ary balancing description.
func huffmanFold(operands []region.Region, op Op) (region.Region, error) {
	h := append(regionHeap(nil), operands...)
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(region.Region)
		b := heap.Pop(&h).(region.Region)
		combined, err := Default.Binary(a, b, op)
		if err != nil {
			return nil, err
		}
		heap.Push(&h, combined)
	}
	return h[0], nil
}
