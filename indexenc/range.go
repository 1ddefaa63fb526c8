package indexenc

import (
	"github.com/pique-io/pique/regionmath"
	"github.com/pique-io/pique/setops"
)

// Range stores nbins-1 cumulative-union regions: region i == UNION of
// bins [0, i]. Complement is never cheaper (a cumulative region is
// already a superset-or-equal of the non-complement plan), so no
// alternative is generated. Grounded on
// original_source/src/encoding/range/range-encoding.cpp.
type Range struct{}

func (Range) Type() Type { return RANGE }

func (Range) NumRegions(nbins int) int {
	if nbins == 0 {
		return 0
	}
	return nbins - 1
}

func (Range) EncodedRegionDefinitions(nbins int) [][]int {
	n := nbins - 1
	defs := make([][]int, 0, n)
	for i := 0; i < n; i++ {
		var def []int
		if i > 0 {
			def = append(def, defs[i-1]...)
		}
		def = append(def, i)
		defs = append(defs, def)
	}
	return defs
}

func (Range) HasComplementAlternative() bool { return false }

func (Range) RangeQuery(nbins, lb, ub int, _ bool) (regionmath.Expr, error) {
	if err := validateBinRange(nbins, lb, ub); err != nil {
		return nil, err
	}
	expr := Expr{}
	if ub < nbins {
		expr = expr.PushRegion(rid(ub - 1))
		if lb > 0 {
			expr = expr.PushRegion(rid(lb - 1)).PushNary(setops.DIFFERENCE, 2)
		}
	} else {
		expr = expr.PushRegion(rid(lb - 1)).PushUnary(setops.NOT)
	}
	return expr, nil
}
