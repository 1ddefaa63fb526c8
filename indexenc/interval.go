package indexenc

import (
	"github.com/pique-io/pique/regionmath"
	"github.com/pique-io/pique/setops"
)

// Interval stores nbins-ceil(nbins/2)+1 sliding-window regions (region
// i covers bins [i, i+halfSpan)) plus, appended after them, one flat
// per-bin region per bin. A query [lb, ub) is answered directly when it
// matches a single window region or the union of exactly two adjacent
// window regions; otherwise it falls back to a union of the per-bin
// regions. Those per-bin regions are this scheme's own stored regions,
// numbered right after the window regions — RangeQuery must only ever
// reference region IDs this scheme's own EncodedRegionDefinitions
// actually produced, never Equality's (the two schemes number their
// stored regions differently).
type Interval struct{}

func (Interval) Type() Type { return INTERVAL }

func (Interval) halfSpan(nbins int) int {
	span := (nbins + 1) / 2 // ceil(nbins/2)
	if span < 1 {
		span = 1
	}
	return span
}

// windowRegionCount is the number of sliding-window regions, excluding
// the per-bin fallback regions appended after them.
func (s Interval) windowRegionCount(nbins int) int {
	span := s.halfSpan(nbins)
	n := nbins - span + 1
	if n < 0 {
		n = 0
	}
	return n
}

func (s Interval) NumRegions(nbins int) int {
	return s.windowRegionCount(nbins) + nbins
}

func (s Interval) EncodedRegionDefinitions(nbins int) [][]int {
	span := s.halfSpan(nbins)
	wn := s.windowRegionCount(nbins)
	defs := make([][]int, 0, wn+nbins)
	for i := 0; i < wn; i++ {
		def := make([]int, 0, span)
		for b := i; b < i+span && b < nbins; b++ {
			def = append(def, b)
		}
		defs = append(defs, def)
	}
	for b := 0; b < nbins; b++ {
		defs = append(defs, []int{b})
	}
	return defs
}

func (Interval) HasComplementAlternative() bool { return true }

// findExactRegion returns the index of the single stored region
// covering exactly [lb, ub), or -1 if none matches.
func (s Interval) findExactRegion(nbins, lb, ub int) int {
	span := s.halfSpan(nbins)
	if ub-lb != span {
		return -1
	}
	n := s.windowRegionCount(nbins)
	if lb < 0 || lb >= n {
		return -1
	}
	return lb
}

// findTwoRegionUnion returns (i, j) such that region i unioned with
// region j exactly equals [lb, ub), or (-1,-1) if none matches.
func (s Interval) findTwoRegionUnion(nbins, lb, ub int) (int, int) {
	span := s.halfSpan(nbins)
	n := s.windowRegionCount(nbins)
	width := ub - lb
	if width <= span || width > 2*span {
		return -1, -1
	}
	// Two adjacent regions starting at lb cover [lb, lb+2*span) when
	// they overlap by 2*span-width; any pair of regions starting at lb
	// and lb+(width-span) union to exactly [lb, ub) when both indices
	// are valid and lb+(width-span) <= lb+span (i.e. they overlap or
	// touch, so no gap).
	second := lb + (width - span)
	if lb < 0 || lb >= n || second < 0 || second >= n || second > lb+span {
		return -1, -1
	}
	return lb, second
}

func (s Interval) RangeQuery(nbins, lb, ub int, preferComplement bool) (regionmath.Expr, error) {
	if err := validateBinRange(nbins, lb, ub); err != nil {
		return nil, err
	}

	if !preferComplement {
		if i := s.findExactRegion(nbins, lb, ub); i >= 0 {
			return Expr{}.PushRegion(rid(i)), nil
		}
		if i, j := s.findTwoRegionUnion(nbins, lb, ub); i >= 0 {
			if i == j {
				return Expr{}.PushRegion(rid(i)), nil
			}
			return Expr{}.PushRegion(rid(i)).PushRegion(rid(j)).PushNary(setops.UNION, 2), nil
		}
	} else {
		// The complement of [lb, ub) is [0, lb) ∪ [ub, nbins); when one
		// side is empty the other may be exactly one window region.
		if lb == 0 {
			if i := s.findExactRegion(nbins, ub, nbins); i >= 0 {
				return Expr{}.PushRegion(rid(i)).PushUnary(setops.NOT), nil
			}
		} else if ub == nbins {
			if i := s.findExactRegion(nbins, 0, lb); i >= 0 {
				return Expr{}.PushRegion(rid(i)).PushUnary(setops.NOT), nil
			}
		}
	}

	// Fallback: union of this scheme's own per-bin regions, which sit
	// at IDs [wn, wn+nbins) in this scheme's RID space, right after the
	// wn sliding-window regions. The complement form unions the per-bin
	// regions outside [lb, ub) and negates the result.
	wn := s.windowRegionCount(nbins)
	if preferComplement {
		expr := Expr{}.PushRegionRange(rid(wn), rid(wn+lb)).PushRegionRange(rid(wn+ub), rid(wn+nbins))
		return expr.PushNary(setops.UNION, lb+nbins-ub).PushUnary(setops.NOT), nil
	}
	expr := Expr{}.PushRegionRange(rid(wn+lb), rid(wn+ub))
	expr = expr.PushNary(setops.UNION, ub-lb)
	return expr, nil
}
