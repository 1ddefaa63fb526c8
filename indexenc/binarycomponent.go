package indexenc

import (
	"github.com/pique-io/pique/regionmath"
	"github.com/pique-io/pique/setops"
)

// BinaryComponent stores one region per bit-plane of the bin id: region
// i is the set of bins whose ID has bit i clear (nregions == ceil(log2(nbins))).
// A bound value is located by combining bit-plane regions via UNION
// where the bound's bit is 1 and INTERSECTION where it is 0, scanning
// from the low bit up; the upper and lower bound plans are then
// combined via DIFFERENCE (or COMPLEMENT alone when there is no
// additive side). Grounded on
// original_source/src/encoding/binarycomp/binarycomp-encoding.cpp.
type BinaryComponent struct{}

func (BinaryComponent) Type() Type { return BINARY_COMPONENT }

func numBitLevels(nbins int) int {
	levels := 0
	for n := nbins - 1; n != 0; n >>= 1 {
		levels++
	}
	return levels
}

func (BinaryComponent) NumRegions(nbins int) int { return numBitLevels(nbins) }

func (BinaryComponent) EncodedRegionDefinitions(nbins int) [][]int {
	nlayers := numBitLevels(nbins)
	defs := make([][]int, nlayers)
	for layer := 0; layer < nlayers; layer++ {
		mask := 1 << uint(layer)
		var def []int
		for i := 0; i < nbins; i++ {
			if i&mask == 0 {
				def = append(def, i)
			}
		}
		defs[layer] = def
	}
	return defs
}

// HasComplementAlternative is false: the source's get_region_math_impl
// takes a prefer_complement parameter but its logic never branches on
// it — the additive/subtractive split is already determined by whether
// ub==nbins, so there is only ever one canonical plan per (lb,ub).
func (BinaryComponent) HasComplementAlternative() bool { return false }

// pushBitComponentExpr appends the region-combination for value's bit
// planes, scanning from bit 0 upward: a set bit unions in region i
// (cumulative OR across those planes), a clear bit intersects it in —
// but only once the expression has already started (a leading run of
// clear bits contributes nothing, matching the source's region_pushed
// guard).
func pushBitComponentExpr(expr regionmath.Expr, value, numBitLevels int) regionmath.Expr {
	pushed := false
	for i := 0; i < numBitLevels; i++ {
		if value&(1<<uint(i)) != 0 {
			expr = expr.PushRegion(rid(i))
			if pushed {
				expr = expr.PushNary(setops.UNION, 2)
			}
			pushed = true
		} else if pushed {
			expr = expr.PushRegion(rid(i)).PushNary(setops.INTERSECTION, 2)
		}
	}
	return expr
}

func (BinaryComponent) RangeQuery(nbins, lb, ub int, _ bool) (regionmath.Expr, error) {
	if err := validateBinRange(nbins, lb, ub); err != nil {
		return nil, err
	}
	hasSubtractive := lb > 0
	hasAdditive := ub < nbins
	levels := numBitLevels(nbins)

	expr := Expr{}
	if hasAdditive {
		expr = pushBitComponentExpr(expr, ub, levels)
		if hasSubtractive {
			expr = pushBitComponentExpr(expr, lb, levels)
			expr = expr.PushNary(setops.DIFFERENCE, 2)
		}
	} else {
		expr = pushBitComponentExpr(expr, lb, levels)
		expr = expr.PushUnary(setops.NOT)
	}
	return expr, nil
}
