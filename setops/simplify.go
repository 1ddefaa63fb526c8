package setops

import "github.com/pique-io/pique/region"

// Simplify implements SimplifiedSetOp (§4.A): given operands with known
// uniformity, reduce the problem before invoking the general engine.
// Returns either a fully resolved region (resolved != nil, caller
// applies `complement` and is done) or a reduced (operands, op) pair plus
// a complement-result flag the caller must apply to whatever the engine
// produces.
func Simplify(domainSize uint64, typ region.Type, operands []region.Region, op Op) (resolved region.Region, newOperands []region.Region, newOp Op, complement bool, err error) {
	newOp = op
	newOperands = operands

	for {
		switch newOp {
		case UNION:
			kept := make([]region.Region, 0, len(newOperands))
			for _, o := range newOperands {
				switch o.Uniformity() {
				case region.FILLED:
					resolved, err = region.MakeUniformRegion(typ, domainSize, true)
					return
				case region.EMPTY:
					// dropped: contributes nothing to a union
				default:
					kept = append(kept, o)
				}
			}
			if len(kept) == 0 {
				resolved, err = region.MakeUniformRegion(typ, domainSize, false)
				return
			}
			newOperands = kept
			return

		case INTERSECTION:
			if len(newOperands) == 0 {
				resolved, err = region.MakeUniformRegion(typ, domainSize, true)
				return
			}
			kept := make([]region.Region, 0, len(newOperands))
			for _, o := range newOperands {
				switch o.Uniformity() {
				case region.EMPTY:
					resolved, err = region.MakeUniformRegion(typ, domainSize, false)
					return
				case region.FILLED:
					// dropped: contributes nothing to an intersection
				default:
					kept = append(kept, o)
				}
			}
			if len(kept) == 0 {
				resolved, err = region.MakeUniformRegion(typ, domainSize, true)
				return
			}
			newOperands = kept
			return

		case DIFFERENCE:
			if len(newOperands) == 0 {
				resolved, err = region.MakeUniformRegion(typ, domainSize, true)
				return
			}
			first := newOperands[0]
			rest := newOperands[1:]
			if first.Uniformity() == region.EMPTY {
				resolved, err = region.MakeUniformRegion(typ, domainSize, false)
				return
			}
			if first.Uniformity() == region.FILLED && len(rest) > 0 {
				// FILLED first with a subtracted tail: A - (B1,B2,...)
				// == complement(UNION(B1,B2,...)).
				newOp = UNION
				newOperands = rest
				complement = !complement
				continue
			}
			return

		case SYMMETRIC_DIFFERENCE:
			kept := make([]region.Region, 0, len(newOperands))
			toggled := false
			for _, o := range newOperands {
				switch o.Uniformity() {
				case region.FILLED:
					toggled = !toggled
				case region.EMPTY:
					// identity: dropped without toggling
				default:
					kept = append(kept, o)
				}
			}
			if toggled {
				complement = !complement
			}
			if len(kept) == 0 {
				resolved, err = region.MakeUniformRegion(typ, domainSize, false)
				return
			}
			if len(kept) == len(newOperands) {
				// nothing further to reduce
				newOperands = kept
				return
			}
			newOperands = kept
			continue
		}
	}
}
