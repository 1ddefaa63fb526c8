package indexenc

import (
	"github.com/pique-io/pique/regionmath"
	"github.com/pique-io/pique/setops"
)

// Equality stores one region per bin (nregions == nbins); the ith
// stored region is exactly the ith bin region. Grounded on
// original_source/src/encoding/eq/eq-encoding.cpp.
type Equality struct{}

func (Equality) Type() Type { return EQUALITY }

func (Equality) NumRegions(nbins int) int { return nbins }

func (Equality) EncodedRegionDefinitions(nbins int) [][]int {
	defs := make([][]int, nbins)
	for i := range defs {
		defs[i] = []int{i}
	}
	return defs
}

func (Equality) HasComplementAlternative() bool { return true }

func (Equality) RangeQuery(nbins, lb, ub int, preferComplement bool) (regionmath.Expr, error) {
	if err := validateBinRange(nbins, lb, ub); err != nil {
		return nil, err
	}
	if preferComplement {
		expr := Expr{}.
			PushRegionRange(rid(0), rid(lb)).
			PushRegionRange(rid(ub), rid(nbins))
		expr = expr.PushNary(setops.UNION, (lb-0)+(nbins-ub))
		expr = expr.PushUnary(setops.NOT)
		return expr, nil
	}
	expr := Expr{}.PushRegionRange(rid(lb), rid(ub))
	expr = expr.PushNary(setops.UNION, ub-lb)
	return expr, nil
}

// Expr is a local alias so each scheme file reads naturally; it is the
// same type as regionmath.Expr.
type Expr = regionmath.Expr
