package indexenc

import (
	"sort"

	"github.com/pique-io/pique/regionmath"
	"github.com/pique-io/pique/setops"
)

// Hierarchical decomposes a bin-count boundary into a Fenwick-tree-style
// sum of power-of-two runs; each run is one stored region (nregions ==
// nbins-1). A query computes the additive (ub-side) and subtractive
// (lb-side) region sets, cancels any region appearing in both (so it's
// never read), and combines the rest via UNION/DIFFERENCE or, when
// there's no additive side, UNION+COMPLEMENT. Grounded on
// original_source/src/encoding/hier/hier-encoding.cpp.
type Hierarchical struct{}

func (Hierarchical) Type() Type { return HIERARCHICAL }

func (Hierarchical) NumRegions(nbins int) int {
	if nbins == 0 {
		return 0
	}
	return nbins - 1
}

// hierarchicalRange returns the set of region IDs whose power-of-two
// runs sum to the inclusive bin boundary (bound-1), matching
// build_hierarchical_range's Fenwick decomposition.
func hierarchicalRange(boundExclusive int) []int {
	n := boundExclusive // already "bound - 1 + 1" in the source's notation
	var out []int
	bitmask := 1
	for n != 0 {
		if n&bitmask != 0 {
			out = append(out, n-1)
			n -= bitmask
		}
		bitmask <<= 1
	}
	return out
}

func (Hierarchical) EncodedRegionDefinitions(nbins int) [][]int {
	nregions := nbins - 1
	defs := make([][]int, nregions)
	for i := 0; i < nregions; i++ {
		end := i + 1
		mergeLen := 1
		for end&mergeLen == 0 {
			mergeLen <<= 1
		}
		begin := end - mergeLen
		def := make([]int, 0, mergeLen)
		for b := begin; b < end; b++ {
			def = append(def, b)
		}
		defs[i] = def
	}
	return defs
}

func (Hierarchical) HasComplementAlternative() bool { return false }

func symmetricDifferenceInts(a, b []int) (outA, outB []int) {
	inB := make(map[int]bool, len(b))
	for _, x := range b {
		inB[x] = true
	}
	inA := make(map[int]bool, len(a))
	for _, x := range a {
		inA[x] = true
	}
	for _, x := range a {
		if !inB[x] {
			outA = append(outA, x)
		}
	}
	for _, x := range b {
		if !inA[x] {
			outB = append(outB, x)
		}
	}
	return
}

func (Hierarchical) RangeQuery(nbins, lb, ub int, _ bool) (regionmath.Expr, error) {
	if err := validateBinRange(nbins, lb, ub); err != nil {
		return nil, err
	}
	hasSubtractive := lb > 0
	hasAdditive := ub < nbins

	var additive, subtractive []int
	if hasAdditive {
		additive = hierarchicalRange(ub)
	}
	if hasSubtractive {
		subtractive = hierarchicalRange(lb)
	}
	if hasAdditive && hasSubtractive {
		additive, subtractive = symmetricDifferenceInts(additive, subtractive)
	}
	sort.Ints(additive)
	sort.Ints(subtractive)

	expr := Expr{}
	if hasAdditive {
		for _, r := range additive {
			expr = expr.PushRegion(rid(r))
		}
		expr = expr.PushNary(setops.UNION, len(additive))
		if hasSubtractive {
			for _, r := range subtractive {
				expr = expr.PushRegion(rid(r))
			}
			expr = expr.PushNary(setops.DIFFERENCE, 1+len(subtractive))
		}
	} else {
		for _, r := range subtractive {
			expr = expr.PushRegion(rid(r))
		}
		expr = expr.PushNary(setops.UNION, len(subtractive)).PushUnary(setops.NOT)
	}
	return expr, nil
}
