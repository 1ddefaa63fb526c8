package setops

import (
	"github.com/pique-io/pique/convert"
	"github.com/pique-io/pique/region"
)

// cblqImpl implements SetOperations for CBLQ by converting operands to
// bitmaps via the convert package and delegating to the word-parallel
// bitmap algorithm. The source performs genuine tree-structural set
// operations directly over the CBLQ nodes; PIQUE-Go's flat-domain CBLQ
// (region.CBLQRegion, built without true multi-dimensional Z-order
// linearization) makes convert-then-combine the natural match for its
// own simplified tree shape.
type cblqImpl struct{}

func (cblqImpl) Accepts(types ...region.Type) bool {
	for _, t := range types {
		if !isCBLQ(t) {
			return false
		}
	}
	return true
}

func isCBLQ(t region.Type) bool {
	switch t {
	case region.CBLQ1, region.CBLQ2, region.CBLQ3, region.CBLQ4:
		return true
	default:
		return false
	}
}

func toBitmap(r region.Region) *region.BitmapRegion {
	return convert.ToBitmapDFS(r.(*region.CBLQRegion))
}

func (cblqImpl) Unary(r region.Region, op UnaryOp) (region.Region, error) {
	return bitmapImpl{}.Unary(toBitmap(r), op)
}

func (cblqImpl) Binary(l, r region.Region, op Op) (region.Region, error) {
	return bitmapImpl{}.Binary(toBitmap(l), toBitmap(r), op)
}

func (m cblqImpl) Nary(regions []region.Region, op Op) (region.Region, error) {
	bitmaps := make([]region.Region, len(regions))
	for i, r := range regions {
		bitmaps[i] = toBitmap(r)
	}
	return bitmapImpl{}.Nary(bitmaps, op)
}
