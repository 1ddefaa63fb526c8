package setops

import (
	"github.com/pique-io/pique/convert"
	"github.com/pique-io/pique/region"
)

// bitmapFallbackImpl is the universal tail entry of the default
// preference list: it accepts any combination of operand encodings by
// converting each operand to a BitmapRegion before delegating to the
// word-parallel bitmap algorithm. This guarantees Accepts/pick never
// fails to dispatch a mixed-encoding operand set, matching the
// preference list's intended role as a total function over region
// types.
type bitmapFallbackImpl struct{}

func (bitmapFallbackImpl) Accepts(_ ...region.Type) bool { return true }

func toBitmapAny(r region.Region) *region.BitmapRegion {
	switch v := r.(type) {
	case *region.BitmapRegion:
		return v
	case *region.CBLQRegion:
		return convert.ToBitmapDFS(v)
	default:
		blocks := make([]uint64, (r.DomainSize()+63)/64)
		for _, rid := range r.ToRIDs(nil, 0) {
			blocks[rid/64] |= uint64(1) << (rid % 64)
		}
		return region.NewBitmapRegion(r.DomainSize(), blocks)
	}
}

func (bitmapFallbackImpl) Unary(r region.Region, op UnaryOp) (region.Region, error) {
	return bitmapImpl{}.Unary(toBitmapAny(r), op)
}

func (bitmapFallbackImpl) Binary(l, r region.Region, op Op) (region.Region, error) {
	return bitmapImpl{}.Binary(toBitmapAny(l), toBitmapAny(r), op)
}

func (m bitmapFallbackImpl) Nary(regions []region.Region, op Op) (region.Region, error) {
	bitmaps := make([]region.Region, len(regions))
	for i, r := range regions {
		bitmaps[i] = toBitmapAny(r)
	}
	return bitmapImpl{}.Nary(bitmaps, op)
}
